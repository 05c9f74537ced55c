// Package bus defines point-to-point message delivery between actors.
package bus

import (
	"context"
	"errors"

	"github.com/kilianp07/wsd/core/message"
	"github.com/kilianp07/wsd/core/model"
)

// ErrUnknownReceiver is returned when a receiver has no attached mailbox.
var ErrUnknownReceiver = errors.New("unknown receiver")

// Bus delivers messages to attached actors. Delivery between a given sender
// and receiver is FIFO. Send never blocks on a slow receiver.
type Bus interface {
	// Attach opens the inbox of ref.
	Attach(ref model.ActorRef) (<-chan message.Message, error)
	// Detach closes the inbox of ref. Later sends to ref fail.
	Detach(ref model.ActorRef)
	// Send delivers msg to each of its receivers. A failure for one receiver
	// does not prevent delivery to the others; the errors are joined.
	Send(ctx context.Context, msg message.Message) error
}
