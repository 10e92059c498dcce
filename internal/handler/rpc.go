package handler

import (
	"encoding/json"
	"errors"

	"github.com/goevery/tracker/internal/ierr"
)

const (
	MethodHeartbeat = "heartbeat"
	MethodJoin      = "join"
	MethodLeave     = "leave"
)

// Request is a call sent by a websocket client. Requests without an id are
// notifications and get no reply.
type Request struct {
	Id     int             `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (r Request) ReplyExpected() bool {
	return r.Id != 0
}

func (r Request) DecodeParams(v any) error {
	if len(r.Params) == 0 {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("missing params"))
	}

	if err := json.Unmarshal(r.Params, v); err != nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid params: "+err.Error()))
	}

	return nil
}

func (r Request) Reply(result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, err
	}

	return Response{
		RequestId: r.Id,
		Result:    raw,
	}, nil
}

func (r Request) ReplyWithError(err ierr.Error) Response {
	return Response{
		RequestId: r.Id,
		Error:     &err,
	}
}

type Response struct {
	RequestId int             `json:"requestId"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ierr.Error     `json:"error,omitempty"`
}

func (r Response) IsFailure() bool {
	return r.Error != nil
}
