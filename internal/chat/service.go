package chat

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"go-chat/internal/user"
)

// greeting seeds the last-message preview of a freshly provisioned room.
const greeting = "Let's start the conversation"

// RoomStore is the room half of the persistence adapter.
type RoomStore interface {
	Create(ctx context.Context, name, lastMessage string, participantIDs []string) (*Room, error)
	List(ctx context.Context) ([]Room, error)
	UpdateLastMessage(ctx context.Context, roomID, text string) (*Room, error)
}

type ConversationStore interface {
	ListByRoom(ctx context.Context, roomID string) ([]Conversation, error)
	Create(ctx context.Context, userID, roomID, content string) (*Conversation, error)
}

// UserStore is the slice of the user repository the aggregator needs.
type UserStore interface {
	List(ctx context.Context) ([]user.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]user.User, error)
}

// ViewCache is the optional cache-aside layer in front of the read paths.
type ViewCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

const (
	cacheKeyAllRooms      = "rooms:all"
	cacheKeyUserRooms     = "rooms:user:"
	cacheKeyConversations = "conversations:"
)

// RoomService reconstructs denormalized room views from normalized storage
// and provisions pairwise rooms. All storage failures propagate to the
// caller; there are no retries at this layer.
type RoomService struct {
	rooms         RoomStore
	conversations ConversationStore
	users         UserStore
	cache         ViewCache // nil disables caching
	log           zerolog.Logger
}

func NewRoomService(rooms RoomStore, conversations ConversationStore, users UserStore, cache ViewCache, log zerolog.Logger) *RoomService {
	return &RoomService{
		rooms:         rooms,
		conversations: conversations,
		users:         users,
		cache:         cache,
		log:           log,
	}
}

// RoomsForUser returns the rooms the user participates in, each joined to
// its participant users.
func (s *RoomService) RoomsForUser(ctx context.Context, userID string) ([]RoomResponse, error) {
	key := cacheKeyUserRooms + userID
	var cached []RoomResponse
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, err
	}
	mine := lo.Filter(rooms, func(r Room, _ int) bool {
		return slices.Contains(r.ParticipantIDs, userID)
	})

	views, err := s.assemble(ctx, mine)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, views)
	return views, nil
}

// AllRooms is RoomsForUser without the membership filter.
func (s *RoomService) AllRooms(ctx context.Context) ([]RoomResponse, error) {
	var cached []RoomResponse
	if s.cacheGet(ctx, cacheKeyAllRooms, &cached) {
		return cached, nil
	}

	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, err
	}

	views, err := s.assemble(ctx, rooms)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cacheKeyAllRooms, views)
	return views, nil
}

// assemble joins rooms to their users with a single batched lookup: O(1)
// queries to the store no matter how many rooms are in play. Room order is
// preserved, and each Users slice follows its room's ParticipantIDs order.
func (s *RoomService) assemble(ctx context.Context, rooms []Room) ([]RoomResponse, error) {
	if len(rooms) == 0 {
		return []RoomResponse{}, nil
	}

	ids := lo.Uniq(lo.FlatMap(rooms, func(r Room, _ int) []string {
		return r.ParticipantIDs
	}))

	participants, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(participants, func(u user.User) string { return u.ID })

	views := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		users := make([]user.User, 0, len(room.ParticipantIDs))
		for _, id := range room.ParticipantIDs {
			u, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("%w: room %s, user %s", ErrIntegrity, room.ID, id)
			}
			users = append(users, u)
		}
		views = append(views, RoomResponse{Room: room, Users: users})
	}
	return views, nil
}

// ProvisionRoomsFor creates one fresh pairwise room between userID and every
// other known user, requester first in the participant list. Deliberately
// not idempotent: calling it twice doubles the rooms. Callers wanting dedupe
// must check upstream.
func (s *RoomService) ProvisionRoomsFor(ctx context.Context, userID string) ([]RoomResponse, error) {
	peers, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	stale := []string{cacheKeyAllRooms, cacheKeyUserRooms + userID}
	for _, peer := range peers {
		if peer.ID == userID {
			continue
		}
		if _, err := s.rooms.Create(ctx, peer.Username, greeting, []string{userID, peer.ID}); err != nil {
			return nil, err
		}
		// The peer's cached room list no longer reflects storage either.
		stale = append(stale, cacheKeyUserRooms+peer.ID)
	}

	s.cacheInvalidate(ctx, stale...)
	return s.RoomsForUser(ctx, userID)
}

// RecordLastMessage updates a room's preview, returning nil when the room id
// is unknown.
func (s *RoomService) RecordLastMessage(ctx context.Context, roomID, text string) (*Room, error) {
	room, err := s.rooms.UpdateLastMessage(ctx, roomID, text)
	if err != nil {
		return nil, err
	}
	if room != nil {
		stale := []string{cacheKeyAllRooms}
		for _, id := range room.ParticipantIDs {
			stale = append(stale, cacheKeyUserRooms+id)
		}
		s.cacheInvalidate(ctx, stale...)
	}
	return room, nil
}

// ConversationsByRoom lists a room's history. Empty history and unknown room
// are the same successful, empty answer.
func (s *RoomService) ConversationsByRoom(ctx context.Context, roomID string) ([]Conversation, error) {
	key := cacheKeyConversations + roomID
	var cached []Conversation
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	conversations, err := s.conversations.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if conversations == nil {
		conversations = []Conversation{}
	}
	s.cacheSet(ctx, key, conversations)
	return conversations, nil
}

// RecordMessage durably stores one delivered broadcast and refreshes the
// room preview. Called by the registry off its hot path.
func (s *RoomService) RecordMessage(ctx context.Context, userID, roomID, content string) error {
	if _, err := s.conversations.Create(ctx, userID, roomID, content); err != nil {
		return err
	}
	s.cacheInvalidate(ctx, cacheKeyConversations+roomID)

	if _, err := s.RecordLastMessage(ctx, roomID, content); err != nil {
		return err
	}
	return nil
}

// Cache helpers are best effort: a broken cache degrades to the database
// and logs, it never fails a request.

func (s *RoomService) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	return hit
}

func (s *RoomService) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (s *RoomService) cacheInvalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}
