// Package sessions keeps the active chat session and the transcripts the
// client knows about. The backend is authoritative for listings and stored
// transcripts; the local copy holds turns of the current panel lifetime.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/client/chatapi"
	"github.com/dmitrijs2005/quickpage/internal/client/models"
	"github.com/dmitrijs2005/quickpage/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/quickpage/internal/common"
	"github.com/dmitrijs2005/quickpage/internal/logging"
	"github.com/google/uuid"
)

type Backend interface {
	ListSessions(ctx context.Context, token string) ([]models.SessionSummary, error)
	GetSession(ctx context.Context, token, sessionID string) (models.Session, error)
	DeleteSession(ctx context.Context, token, sessionID string) error
}

type TokenSource interface {
	EnsureFresh(ctx context.Context, now time.Time) (string, error)
	Logout(ctx context.Context) error
}

// SnapshotRestorer receives page content carried by a loaded session.
type SnapshotRestorer interface {
	Restore(s models.PageContentSnapshot)
}

type Registry struct {
	backend Backend
	tokens  TokenSource
	prefs   metadata.Repository
	gate    SnapshotRestorer
	log     logging.Logger
	now     func() time.Time
	newID   func() string

	mu     sync.Mutex
	active string
	local  map[string]*models.Session
}

func NewRegistry(backend Backend, tokens TokenSource, prefs metadata.Repository, gate SnapshotRestorer, log logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		backend: backend,
		tokens:  tokens,
		prefs:   prefs,
		gate:    gate,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
		local:   make(map[string]*models.Session),
	}
}

// Start picks the active session for a new panel lifetime: the stored one
// when resume is set and one is stored, a new one otherwise.
func (r *Registry) Start(ctx context.Context, resume bool) (string, error) {
	if resume {
		v, err := r.prefs.Get(ctx, common.KeyCurrentSessionID)
		if err != nil {
			return "", err
		}
		if id := string(v); id != "" {
			r.mu.Lock()
			r.active = id
			r.ensureLocal(id)
			r.mu.Unlock()
			r.log.Info(ctx, "resumed session", "session_id", id)
			return id, nil
		}
	}
	return r.Create(ctx)
}

// Create allocates a fresh session and makes it active.
func (r *Registry) Create(ctx context.Context) (string, error) {
	id := r.newID()
	r.mu.Lock()
	r.active = id
	r.ensureLocal(id)
	r.mu.Unlock()

	if err := r.prefs.Set(ctx, common.KeyCurrentSessionID, []byte(id)); err != nil {
		return "", fmt.Errorf("persist active session: %w", err)
	}
	r.log.Debug(ctx, "created session", "session_id", id)
	return id, nil
}

// Active returns the id of the active session.
func (r *Registry) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Transcript returns a copy of the local transcript of id.
func (r *Registry) Transcript(id string) []models.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.local[id]
	if !ok {
		return nil
	}
	return append([]models.Turn(nil), s.Transcript...)
}

// Append adds turns to the transcript of id. It never touches any other
// session, so a late response lands where its query was sent from.
func (r *Registry) Append(id string, turns ...models.Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.ensureLocal(id)
	s.Transcript = append(s.Transcript, turns...)
	s.LastMessageAt = r.now()
	if s.Title == "" {
		for _, t := range turns {
			if t.Kind == models.TurnUserText {
				s.Title = ShortTitle(t.Content)
				break
			}
		}
	}
}

func (r *Registry) ensureLocal(id string) *models.Session {
	s, ok := r.local[id]
	if !ok {
		now := r.now()
		s = &models.Session{ID: id, CreatedAt: now, LastMessageAt: now}
		r.local[id] = s
	}
	return s
}

// ListSummaries returns the remote listing, newest activity first.
func (r *Registry) ListSummaries(ctx context.Context) ([]models.SessionSummary, error) {
	token, err := r.token(ctx)
	if err != nil {
		return nil, err
	}
	list, err := r.backend.ListSessions(ctx, token)
	if err != nil {
		return nil, r.remoteErr(ctx, "list sessions", err)
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].LastMessageAt.After(list[j].LastMessageAt)
	})
	for i := range list {
		list[i].Title = ShortTitle(list[i].Title)
	}
	return list, nil
}

// Load makes id active and returns its transcript. The remote transcript
// wins unless the local copy holds turns the backend has not stored yet; a
// session the backend does not know is served from the local copy.
func (r *Registry) Load(ctx context.Context, id string) (models.Session, error) {
	token, err := r.token(ctx)
	if err != nil {
		return models.Session{}, err
	}

	remote, err := r.backend.GetSession(ctx, token, id)
	var appErr *chatapi.ResponseError
	switch {
	case err == nil:
	case errors.As(err, &appErr) && r.hasLocal(id):
		r.log.Debug(ctx, "session unknown to backend, using local copy", "session_id", id)
		remote = models.Session{ID: id}
	default:
		return models.Session{}, r.remoteErr(ctx, "load session", err)
	}

	r.mu.Lock()
	s := r.ensureLocal(id)
	if len(remote.Transcript) >= len(s.Transcript) {
		s.Transcript = append([]models.Turn(nil), remote.Transcript...)
	}
	if remote.Title != "" {
		s.Title = remote.Title
	}
	if !remote.CreatedAt.IsZero() {
		s.CreatedAt = remote.CreatedAt
	}
	if !remote.LastMessageAt.IsZero() {
		s.LastMessageAt = remote.LastMessageAt
	}
	if remote.Snapshot != nil {
		s.Snapshot = remote.Snapshot
	}
	r.active = id
	out := *s
	out.Transcript = append([]models.Turn(nil), s.Transcript...)
	r.mu.Unlock()

	if err := r.prefs.Set(ctx, common.KeyCurrentSessionID, []byte(id)); err != nil {
		return models.Session{}, fmt.Errorf("persist active session: %w", err)
	}
	if out.Snapshot != nil && r.gate != nil {
		r.gate.Restore(*out.Snapshot)
	}
	return out, nil
}

// Delete removes id remotely and locally. Deleting the active session
// creates a new one; the returned id is the active session afterwards.
func (r *Registry) Delete(ctx context.Context, id string) (string, error) {
	token, err := r.token(ctx)
	if err != nil {
		return "", err
	}
	if err := r.backend.DeleteSession(ctx, token, id); err != nil {
		return "", r.remoteErr(ctx, "delete session", err)
	}

	r.mu.Lock()
	delete(r.local, id)
	wasActive := r.active == id
	active := r.active
	r.mu.Unlock()

	if wasActive {
		return r.Create(ctx)
	}
	return active, nil
}

// Reset forgets the local state and the stored active session, used when
// the account is deleted.
func (r *Registry) Reset(ctx context.Context) error {
	r.mu.Lock()
	r.local = make(map[string]*models.Session)
	r.active = ""
	r.mu.Unlock()
	return r.prefs.Clear(ctx)
}

func (r *Registry) hasLocal(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.local[id]
	return ok
}

func (r *Registry) token(ctx context.Context) (string, error) {
	return r.tokens.EnsureFresh(ctx, r.now())
}

// remoteErr erases the credential on auth failures so every caller sees the
// same re-authentication outcome.
func (r *Registry) remoteErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, common.ErrMustReauthenticate) {
		if lerr := r.tokens.Logout(ctx); lerr != nil {
			r.log.Error(ctx, "failed to erase credential", "error", lerr)
		}
		return common.ErrMustReauthenticate
	}
	r.log.Warn(ctx, op+" failed", "error", err)
	return fmt.Errorf("%s: %w", op, err)
}
