// Package replica keeps the local entity store and one remote backup object
// approximately in sync. Resolution is last-writer-wins at whole-snapshot
// granularity: a pull always replaces, never merges.
package replica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gestorpro/backend/internal/domain"
	"gestorpro/backend/internal/remote"
	"gestorpro/backend/internal/store"
)

var (
	// ErrBusy rejects a sync request while another one is in flight. Requests
	// are never queued or run concurrently against the same remote object.
	ErrBusy = errors.New("sync already in progress")
	// ErrNoRemote means no backup backend is configured.
	ErrNoRemote = errors.New("no remote backend configured")
	// ErrDecisionRequired guards the destructive pull path: overwriting local
	// data is only reachable with a decision issued by CheckRemoteNewer.
	ErrDecisionRequired = errors.New("restore decision required")
)

type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateChecking  State = "checking_remote"
	StateRestoring State = "restoring"
)

// GraceWindow absorbs clock skew between replicas: the remote is only
// considered newer when its modified time beats lastSync by more than this.
const GraceWindow = 60 * time.Second

type Synchronizer struct {
	mu     sync.Mutex
	state  State
	repo   store.Repository
	remote remote.Store
	// objectName is the fixed well-known name of the backup document.
	objectName string
}

func New(repo store.Repository, remoteStore remote.Store, objectName string) *Synchronizer {
	if objectName == "" {
		objectName = "gestor_pro_backup.json"
	}
	return &Synchronizer{
		state:      StateIdle,
		repo:       repo,
		remote:     remoteStore,
		objectName: objectName,
	}
}

type PushResult struct {
	ObjectID string    `json:"object_id"`
	SyncedAt time.Time `json:"synced_at"`
	Bytes    int       `json:"bytes"`
}

// RestoreDecision is the token a caller must hand back to Pull. Its existence
// is the human-confirmation gate: Pull is unreachable without one.
type RestoreDecision struct {
	ObjectID         string    `json:"object_id"`
	RemoteModifiedAt time.Time `json:"remote_modified_at"`
	IssuedAt         time.Time `json:"issued_at"`
}

type CheckResult struct {
	RemoteFound      bool             `json:"remote_found"`
	RemoteNewer      bool             `json:"remote_newer"`
	RemoteModifiedAt *time.Time       `json:"remote_modified_at,omitempty"`
	Decision         *RestoreDecision `json:"decision,omitempty"`
}

type PullResult struct {
	RestoredAt time.Time `json:"restored_at"`
	Products   int       `json:"products"`
	Debts      int       `json:"debts"`
	Movements  int       `json:"movements"`
	Clients    int       `json:"clients"`
}

type Status struct {
	State          State      `json:"state"`
	Backend        string     `json:"backend"`
	ObjectName     string     `json:"object_name"`
	BackupObjectID string     `json:"backup_object_id,omitempty"`
	LastSync       *time.Time `json:"last_sync,omitempty"`
}

// Push uploads a fresh snapshot to the remote object, creating it if absent,
// and stamps lastSync on success. The snapshot is captured before any network
// call so the entity store is never locked across I/O.
func (s *Synchronizer) Push(ctx context.Context) (*PushResult, error) {
	if s.remote == nil {
		return nil, ErrNoRemote
	}
	if err := s.begin(StateUploading); err != nil {
		return nil, err
	}
	defer s.end()

	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	objectID := snap.Config.BackupObjectID
	if objectID == "" {
		info, err := s.remote.Find(ctx, s.objectName)
		switch {
		case err == nil:
			objectID = info.ID
		case errors.Is(err, remote.ErrNotFound):
			// First push creates the object.
		default:
			return nil, err
		}
	}

	info, err := s.remote.Upload(ctx, objectID, s.objectName, payload)
	if err != nil {
		return nil, err
	}

	syncedAt := time.Now().UTC()
	if err := s.repo.MarkSynced(ctx, info.ID, syncedAt); err != nil {
		return nil, err
	}

	return &PushResult{ObjectID: info.ID, SyncedAt: syncedAt, Bytes: len(payload)}, nil
}

// CheckRemoteNewer compares the remote modified time against local lastSync.
// It performs no mutation; when the remote object exists it returns a
// decision token the caller may pass to Pull after explicit confirmation.
func (s *Synchronizer) CheckRemoteNewer(ctx context.Context) (*CheckResult, error) {
	if s.remote == nil {
		return nil, ErrNoRemote
	}
	if err := s.begin(StateChecking); err != nil {
		return nil, err
	}
	defer s.end()

	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	info, err := s.remote.Find(ctx, s.objectName)
	if errors.Is(err, remote.ErrNotFound) {
		return &CheckResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	var lastSync time.Time
	if cfg.LastSync != nil {
		lastSync = *cfg.LastSync
	}
	newer := info.ModifiedAt.After(lastSync.Add(GraceWindow))

	modified := info.ModifiedAt
	return &CheckResult{
		RemoteFound:      true,
		RemoteNewer:      newer,
		RemoteModifiedAt: &modified,
		Decision: &RestoreDecision{
			ObjectID:         info.ID,
			RemoteModifiedAt: info.ModifiedAt,
			IssuedAt:         time.Now().UTC(),
		},
	}, nil
}

// Pull downloads the remote snapshot and replaces local state wholesale. It
// is never triggered automatically: the decision token must come from a
// CheckRemoteNewer the caller explicitly confirmed.
func (s *Synchronizer) Pull(ctx context.Context, decision *RestoreDecision) (*PullResult, error) {
	if s.remote == nil {
		return nil, ErrNoRemote
	}
	if decision == nil || decision.ObjectID == "" {
		return nil, ErrDecisionRequired
	}
	if err := s.begin(StateRestoring); err != nil {
		return nil, err
	}
	defer s.end()

	payload, err := s.remote.Download(ctx, decision.ObjectID)
	if err != nil {
		return nil, err
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode remote snapshot: %w", err)
	}

	if err := s.repo.Restore(ctx, snap); err != nil {
		return nil, err
	}

	restoredAt := time.Now().UTC()
	// Stamp lastSync so the next check does not immediately re-prompt for the
	// object we just restored from.
	if err := s.repo.MarkSynced(ctx, decision.ObjectID, restoredAt); err != nil {
		return nil, err
	}

	return &PullResult{
		RestoredAt: restoredAt,
		Products:   len(snap.Products),
		Debts:      len(snap.Debts),
		Movements:  len(snap.History),
		Clients:    len(snap.Clients),
	}, nil
}

func (s *Synchronizer) Status(ctx context.Context) (Status, error) {
	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		return Status{}, err
	}

	backend := "none"
	if s.remote != nil {
		backend = s.remote.Name()
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	return Status{
		State:          state,
		Backend:        backend,
		ObjectName:     s.objectName,
		BackupObjectID: cfg.BackupObjectID,
		LastSync:       cfg.LastSync,
	}, nil
}

func (s *Synchronizer) begin(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrBusy
	}
	s.state = next
	return nil
}

func (s *Synchronizer) end() {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}
