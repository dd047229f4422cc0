package runtime

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
	idspkg "github.com/drblury/diagflow/internal/runtime/ids"
	"github.com/drblury/diagflow/internal/runtime/jsoncodec"
	metadatapkg "github.com/drblury/diagflow/internal/runtime/metadata"
	"github.com/drblury/diagflow/internal/runtime/operation"
	"github.com/drblury/diagflow/internal/runtime/payload"
)

// ErrorDocument is the reply body of a failed request.
type ErrorDocument struct {
	Kind       string `json:"kind"`
	Identifier string `json:"id,omitempty"`
	Message    string `json:"message"`
}

// NewMessageHandler exposes d as a Watermill handler. Requests name their
// target in the diag_identifier metadata and the call in diag_action; the
// payload is the request body. Every request yields exactly one reply whose
// diag_status is "ok" or the error kind. Get and put bodies are JSON
// documents unless diag_content_type asks for application/protobuf, in which
// case they are serialized google.protobuf.Struct values. Failures are reported in the reply,
// never returned to the router, so they are not redelivered.
func NewMessageHandler(d *Dispatcher) message.HandlerFunc {
	if d == nil {
		panic("diagflow: dispatcher is required")
	}

	return func(msg *message.Message) ([]*message.Message, error) {
		md := metadatapkg.FromWatermill(msg.Metadata)
		id := md[handlerpkg.MetadataKeyIdentifier]
		action := handlerpkg.Action(md[handlerpkg.MetadataKeyAction])
		asProto := md[handlerpkg.MetadataKeyContentType] == handlerpkg.ContentTypeProtobuf

		ctx := handlerpkg.WithRequestContext(msg.Context(), handlerpkg.RequestContext{
			Identifier: id,
			Action:     action,
			Metadata:   md,
			Logger:     d.logger,
		})

		if a := d.reg.Arena(); a != nil {
			mark := a.Mark()
			defer a.Rewind(mark)
		}

		replyMD := metadatapkg.New(
			handlerpkg.MetadataKeyCorrelationID, md.Get(handlerpkg.MetadataKeyCorrelationID, msg.UUID),
			handlerpkg.MetadataKeyIdentifier, id,
			handlerpkg.MetadataKeyAction, string(action),
		)

		body, execID, err := d.serve(ctx, id, action, msg.Payload, asProto)
		if err != nil {
			replyMD[handlerpkg.MetadataKeyContentType] = handlerpkg.ContentTypeJSON
			kind := errspkg.KindOf(err).String()
			replyMD[handlerpkg.MetadataKeyStatus] = kind
			replyMD[handlerpkg.MetadataKeyError] = err.Error()
			var encErr error
			body, encErr = jsoncodec.Marshal(ErrorDocument{Kind: kind, Identifier: id, Message: err.Error()})
			if encErr != nil {
				return nil, fmt.Errorf("encode error reply: %w", encErr)
			}
		} else {
			replyMD[handlerpkg.MetadataKeyStatus] = handlerpkg.StatusOK
			if execID != "" {
				replyMD[handlerpkg.MetadataKeyExecutionID] = execID
			}
			if action == handlerpkg.ActionGet {
				replyMD[handlerpkg.MetadataKeyContentType] = handlerpkg.ContentTypeJSON
				if asProto {
					replyMD[handlerpkg.MetadataKeyContentType] = handlerpkg.ContentTypeProtobuf
				}
			}
		}

		// The body may point into the arena, which is rewound on return.
		reply := message.NewMessage(idspkg.CreateULID(), bytes.Clone(body))
		reply.Metadata = metadatapkg.ToWatermill(replyMD)
		return []*message.Message{reply}, nil
	}
}

// serve runs action and renders its result as reply bytes. For operation
// calls it also returns the execution id. asProto switches get and put to
// protobuf Struct bodies.
func (d *Dispatcher) serve(ctx context.Context, id string, action handlerpkg.Action, body []byte, asProto bool) ([]byte, string, error) {
	if id == "" {
		return nil, "", errspkg.New(errspkg.InvalidConfiguration, string(action), "", errspkg.ErrIdentifierRequired)
	}

	switch action {
	case handlerpkg.ActionRead:
		out, err := d.ReadData(ctx, id)
		return out, "", err
	case handlerpkg.ActionWrite:
		return nil, "", d.WriteData(ctx, id, body)
	case handlerpkg.ActionRoutineStart:
		out, err := d.RoutineControl(ctx, id, RoutineStart, body)
		return out, "", err
	case handlerpkg.ActionRoutineStop:
		out, err := d.RoutineControl(ctx, id, RoutineStop, body)
		return out, "", err
	case handlerpkg.ActionRoutineResults:
		out, err := d.RoutineControl(ctx, id, RoutineRequestResults, body)
		return out, "", err
	case handlerpkg.ActionGet:
		if asProto {
			out, err := d.GetDataProto(ctx, id)
			return out, "", err
		}
		out, err := d.GetDataJSON(ctx, id)
		return out, "", err
	case handlerpkg.ActionPut:
		if asProto {
			return nil, "", d.PutDataProto(ctx, id, body)
		}
		return nil, "", d.PutData(ctx, id, body)
	case handlerpkg.ActionExecute:
		var params payload.Document
		if len(bytes.TrimSpace(body)) > 0 {
			doc, err := payload.ParseDocument(body)
			if err != nil {
				return nil, "", errspkg.Wrap(err, string(action), id)
			}
			params = doc
		}
		return snapshotReply(d.ExecuteOperation(ctx, id, params))
	case handlerpkg.ActionStatus:
		return snapshotReply(d.OperationStatus(ctx, id))
	case handlerpkg.ActionResume:
		return snapshotReply(d.ResumeOperation(ctx, id))
	case handlerpkg.ActionStop:
		return snapshotReply(d.StopOperation(ctx, id))
	case handlerpkg.ActionReset:
		return nil, "", d.ResetOperation(ctx, id)
	case handlerpkg.ActionInfo:
		info, err := d.OperationInfo(ctx, id)
		if err != nil {
			return nil, "", err
		}
		out, err := jsoncodec.Marshal(info)
		return out, "", err
	default:
		return nil, "", errspkg.New(errspkg.InvalidConfiguration, "dispatch", id, fmt.Errorf("unknown action %q", action))
	}
}

func snapshotReply(snap operation.Snapshot, err error) ([]byte, string, error) {
	if err != nil {
		return nil, "", err
	}
	out, err := jsoncodec.Marshal(snap)
	if err != nil {
		return nil, "", err
	}
	return out, snap.ExecutionID, nil
}
