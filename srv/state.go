package srv

import (
	"net/http"

	"github.com/gabibotos/httpsrv/srv/schema"
	"golang.org/x/sync/errgroup"
)

// state is either stopped or started; only started carries a live address.
type state interface {
	bound() *schema.AddressInfo
}

type stopped struct {
	// last is the address of the previous run, nil before the first start.
	last *schema.AddressInfo
	// err is the serve error of a run whose accept loop died on its own,
	// reported by the next Stop.
	err error
}

func (s stopped) bound() *schema.AddressInfo { return s.last }

type started struct {
	addr   schema.AddressInfo
	server *http.Server
	group  *errgroup.Group
	// done is closed once the serve goroutines have exited.
	done chan struct{}
}

func (s started) bound() *schema.AddressInfo { return &s.addr }
