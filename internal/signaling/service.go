package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	webrtc "github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/pkg/apperr"
)

// Signal message types.
const (
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
	TypeJoin      = "join"
)

// Relay announcement events.
const (
	EventAnswer    = "answer"
	EventCandidate = "candidate"
)

// SessionGetter loads a session or fails NotFound.
type SessionGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// Message is one inbound signaling request.
type Message struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	TargetID *uuid.UUID      `json:"target_id,omitempty"`
}

// Result is the outcome of a signaling request. Offer is set only for join.
type Result struct {
	Offer json.RawMessage `json:"offer,omitempty"`
}

// Service translates inbound negotiation messages into relay operations with
// precise addressing: broadcaster to a specific viewer and back, never a
// session-wide fan-out. The relay never inspects media semantics.
type Service struct {
	relay      Relay
	sessions   SessionGetter
	ttl        time.Duration
	maxPayload int
	logger     *zap.Logger
}

// NewService creates a signaling coordinator.
func NewService(relay Relay, sessions SessionGetter, ttl time.Duration, maxPayloadBytes int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{relay: relay, sessions: sessions, ttl: ttl, maxPayload: maxPayloadBytes, logger: logger}
}

// Signal handles one negotiation message from the given caller.
func (s *Service) Signal(ctx context.Context, sessionID uuid.UUID, from models.Identity, msg Message) (*Result, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsLive() {
		return nil, apperr.InvalidState("session is not live")
	}
	if s.maxPayload > 0 && len(msg.Payload) > s.maxPayload {
		return nil, apperr.InvalidRequest("signal payload too large")
	}

	switch msg.Type {
	case TypeOffer:
		if from.UserID != sess.OwnerID {
			return nil, apperr.Forbidden("only the broadcaster publishes offers")
		}
		if err := validateSDP(msg.Payload, webrtc.SDPTypeOffer); err != nil {
			return nil, err
		}
		if err := s.relay.StoreOffer(ctx, sessionID, msg.Payload, s.ttl); err != nil {
			return nil, fmt.Errorf("store offer: %w", err)
		}
		return &Result{}, nil

	case TypeJoin:
		offer, err := s.relay.FetchOffer(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if offer == nil {
			return nil, apperr.NotReady("broadcaster has not published an offer")
		}
		return &Result{Offer: offer}, nil

	case TypeAnswer:
		if from.UserID == sess.OwnerID {
			return nil, apperr.InvalidRequest("broadcaster does not send answers")
		}
		if err := validateSDP(msg.Payload, webrtc.SDPTypeAnswer); err != nil {
			return nil, err
		}
		if err := s.relay.StoreAnswer(ctx, sessionID, from.UserID, msg.Payload, s.ttl); err != nil {
			return nil, fmt.Errorf("store answer: %w", err)
		}
		// Announce on the broadcaster's channel so they need not poll.
		if err := s.relay.Announce(ctx, sessionID, sess.OwnerID, from.UserID, EventAnswer, msg.Payload); err != nil {
			s.logger.Warn("announce answer", zap.Error(err))
		}
		return &Result{}, nil

	case TypeCandidate:
		target := sess.OwnerID
		if from.UserID == sess.OwnerID {
			if msg.TargetID == nil {
				return nil, apperr.InvalidRequest("candidate from broadcaster requires target_id")
			}
			target = *msg.TargetID
		}
		if err := validateCandidate(msg.Payload); err != nil {
			return nil, err
		}
		if err := s.relay.Announce(ctx, sessionID, target, from.UserID, EventCandidate, msg.Payload); err != nil {
			return nil, fmt.Errorf("announce candidate: %w", err)
		}
		return &Result{}, nil

	default:
		return nil, apperr.InvalidRequest("unknown signal type: " + msg.Type)
	}
}

func validateSDP(payload json.RawMessage, want webrtc.SDPType) error {
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(payload, &sd); err != nil {
		return apperr.InvalidRequest("malformed session description")
	}
	if sd.SDP == "" || sd.Type != want {
		return apperr.InvalidRequest("expected " + want.String() + " session description")
	}
	return nil
}

func validateCandidate(payload json.RawMessage) error {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &cand); err != nil {
		return apperr.InvalidRequest("malformed ice candidate")
	}
	if cand.Candidate == "" {
		return apperr.InvalidRequest("empty ice candidate")
	}
	return nil
}
