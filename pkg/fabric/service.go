package fabric

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Handler computes the reply to one service request.
type Handler func(ctx context.Context, body string) (string, error)

// Service is a named request/reply endpoint. Each Call is answered exactly
// once by whichever server pops the request.
type Service struct {
	client *Client
	name   string
}

// Call sends body to the service and waits for its reply.
// A handler failure is returned wrapped in ErrRemote.
func (s *Service) Call(ctx context.Context, body string) (string, error) {
	id := uuid.NewString()
	replyKey := ServiceReplyKey(s.client.instanceName, s.name, id)

	raw, err := encodeRequest(&request{ID: id, ReplyTo: replyKey, Body: body})
	if err != nil {
		return "", err
	}

	requestsKey := ServiceRequestsKey(s.client.instanceName, s.name)
	if err := s.client.rdb.RPush(ctx, requestsKey, raw).Err(); err != nil {
		return "", fmt.Errorf("failed to send request to %s: %w", s.name, err)
	}

	rawReply, err := s.client.popBlocking(ctx, replyKey)
	if err != nil {
		return "", err
	}

	rep, err := decodeReply(rawReply)
	if err != nil {
		return "", err
	}
	if rep.ID != id {
		return "", fmt.Errorf("%w: reply id %s does not match request %s", ErrMalformedEnvelope, rep.ID, id)
	}
	if rep.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrRemote, rep.Error)
	}
	return rep.Body, nil
}

// Serve answers requests with handler until ctx is cancelled.
// Handler errors are reported to the caller and do not stop the loop.
// Malformed requests are logged and dropped.
func (s *Service) Serve(ctx context.Context, handler Handler) error {
	requestsKey := ServiceRequestsKey(s.client.instanceName, s.name)

	for {
		raw, err := s.client.popBlocking(ctx, requestsKey)
		if err != nil {
			if errors.Is(err, ErrPeerUnreachable) {
				// No callers yet; a server waits indefinitely
				continue
			}
			return err
		}

		req, err := decodeRequest(raw)
		if err != nil {
			log.Printf("[Fabric] Dropping request on %s: %v", s.name, err)
			continue
		}

		if err := s.respond(ctx, req, handler); err != nil {
			return err
		}
	}
}

func (s *Service) respond(ctx context.Context, req *request, handler Handler) error {
	rep := &reply{ID: req.ID}
	body, err := handler(ctx, req.Body)
	if err != nil {
		rep.Error = err.Error()
	} else {
		rep.Body = body
	}

	raw, err := encodeReply(rep)
	if err != nil {
		return err
	}

	// The reply list expires so an abandoned caller leaves nothing behind
	_, err = s.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, req.ReplyTo, raw)
		pipe.Expire(ctx, req.ReplyTo, s.client.replyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reply on %s: %w", s.name, err)
	}
	return nil
}
