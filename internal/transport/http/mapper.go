package http

import (
	"github.com/rentwire/rentwire-server/internal/core"
	"github.com/rentwire/rentwire-server/internal/proto"
	"github.com/rentwire/rentwire-server/internal/store"
)

func messageToProto(msg *store.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:     msg.ID,
		Room:   msg.RoomID,
		From:   msg.Sender,
		FromID: msg.SenderID,
		Text:   msg.Body,
		Read:   msg.Read,
		TS:     msg.CreatedAt.Unix(),
	}
}

func messagesToProto(msgs []*store.Message) []proto.EventMessage {
	out := make([]proto.EventMessage, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, messageToProto(msg))
	}
	return out
}

func outboundFromEvent(event core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "message",
			Data:  messageToProto(&event.Message),
		}
	case core.EventReminder:
		data := proto.EventReminder{Message: messageToProto(&event.Message)}
		if event.Reminder != nil {
			data.TenantID = event.Reminder.TenantID
			data.TenantName = event.Reminder.TenantName
			data.Property = event.Reminder.Property
			data.DaysOverdue = event.Reminder.DaysOverdue
			data.LastPayment = event.Reminder.LastPaymentValue
			if event.Reminder.LastPaymentAt != nil {
				data.LastPaymentTS = event.Reminder.LastPaymentAt.Unix()
			}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "reminder",
			Data:  data,
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "user_joined",
			Data:  proto.EventPresence{Room: event.Room, User: event.User},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "user_left",
			Data:  proto.EventPresence{Room: event.Room, User: event.User},
		}
	case core.EventHistory:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "history",
			Data: proto.EventHistory{
				Room:     event.Room,
				Messages: messagesToProto(event.Messages),
			},
		}
	case core.EventMessageRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: "read",
			Data:  messageToProto(&event.Message),
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
