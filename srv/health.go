package srv

import (
	"fmt"

	"github.com/heptiolabs/healthcheck"
)

// ListeningCheck reports the server as unhealthy while it is not bound.
func ListeningCheck(s Server) healthcheck.Check {
	return func() error {
		if !s.Listening() {
			return fmt.Errorf("%s listener is not accepting connections", s.Protocol())
		}
		return nil
	}
}
