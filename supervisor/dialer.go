package supervisor

import (
	"context"
	"time"

	"github.com/pankaj/minechat/client"
)

// TCPDialer opens client sessions to a fixed address.
type TCPDialer struct {
	Addr    string
	Timeout time.Duration
	Options []client.Option
}

// Dial implements Dialer.
func (d TCPDialer) Dial(ctx context.Context) (LineSource, error) {
	sess, err := client.Dial(ctx, d.Addr, d.Timeout, d.Options...)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
