package ws

import "context"

type IHub interface {
	Run(ctx context.Context)
	RegisterClient(client *UserClient)
	UnregisterClient(client *UserClient)
	Broadcast(message []byte)
	GetClientCount() int
}
