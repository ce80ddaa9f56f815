package util

import (
	"net"
	"time"
)

// NetConnWrapper wraps a connection with read timeout updated infrequently in trade of accuracy
//
// The real timeout could be anything from the specified value to double of it
type NetConnWrapper struct {
	conn           net.Conn
	readTimeoutMin time.Duration
	readTimeoutMax time.Duration
	readDeadline   time.Time
}

// WrapNetConn creates a NetConnWrapper for given network connection
func WrapNetConn(conn net.Conn, readTimeout time.Duration) *NetConnWrapper {
	return &NetConnWrapper{
		conn:           conn,
		readTimeoutMin: readTimeout,
		readTimeoutMax: readTimeout * 2,
		readDeadline:   time.Time{},
	}
}

// ReadDeadline returns the current read deadline
func (cw *NetConnWrapper) ReadDeadline() time.Time {
	return cw.readDeadline
}

func (cw *NetConnWrapper) Read(p []byte) (n int, err error) {
	if cw.readTimeoutMin > 0 {
		now := time.Now()
		if cw.readDeadline.Sub(now) < cw.readTimeoutMin {
			nextDeadline := now.Add(cw.readTimeoutMax)
			if err := cw.conn.SetReadDeadline(nextDeadline); err != nil {
				return 0, err
			}
			cw.readDeadline = nextDeadline
		}
	}
	return cw.conn.Read(p)
}
