// Package gochannel provides the in-process event channel used when no broker is configured.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// CreateChannel returns one GoChannel acting as both publisher and subscriber.
// Blocking mode waits for subscribers to ack each message, which tests rely on.
func CreateChannel(logger watermill.LoggerAdapter, blocking bool) (*gochannel.GoChannel, *gochannel.GoChannel) {
	buffer := int64(1000)
	if blocking {
		buffer = 10
	}

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            buffer,
			Persistent:                     blocking,
			BlockPublishUntilSubscriberAck: blocking,
		},
		logger,
	)

	return pubSub, pubSub
}
