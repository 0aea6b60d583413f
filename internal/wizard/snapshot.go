package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the snapshot timestamp format, e.g. 20240131_154500.
const TimestampLayout = "20060102_150405"

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrInvalidName      = errors.New("invalid snapshot name")
)

// Snapshot is the persisted form of a session's answers and Q&A history.
type Snapshot struct {
	UserData            *UserProfile `json:"user_data"`
	ConversationHistory []Message    `json:"conversation_history"`
	Timestamp           string       `json:"timestamp"`
}

// SnapshotStore saves and loads snapshots by name. Names are scoped to the
// owner that saved them: loading another owner's name is ErrSnapshotNotFound.
type SnapshotStore interface {
	Save(ctx context.Context, owner string, snap Snapshot) (string, error)
	Load(ctx context.Context, owner, name string) (Snapshot, error)
}

// SnapshotName is progress_<timestamp>_<random>.json. The random part keeps
// saves within the same second apart.
func SnapshotName(timestamp string) string {
	return fmt.Sprintf("progress_%s_%s.json", timestamp, strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// ValidName reports whether name is usable as a single path element.
func ValidName(name string) bool {
	return name != "" && name == filepath.Base(name) && !strings.HasPrefix(name, ".")
}

// Snapshot captures the session's profile and history at now.
func (s *Session) Snapshot(now time.Time) Snapshot {
	history := append([]Message{}, s.History...)
	return Snapshot{
		UserData:            s.Profile.Clone(),
		ConversationHistory: history,
		Timestamp:           now.Format(TimestampLayout),
	}
}

// RestoreResult reports both the stage the session is at after a restore and
// the stage the restored profile suggests.
type RestoreResult struct {
	Live     Stage `json:"live_stage"`
	Inferred Stage `json:"inferred_stage"`
	Adopted  bool  `json:"adopted"`
}

// Restore loads profile and history from snap. The live stage only moves to
// the inferred stage when adoptInferred is set.
func (s *Session) Restore(snap Snapshot, adoptInferred bool) RestoreResult {
	if snap.UserData != nil {
		s.Profile = snap.UserData.Clone()
	} else {
		s.Profile = NewProfile()
	}
	s.History = append([]Message(nil), snap.ConversationHistory...)

	inferred := InferStage(s.Profile)
	if adoptInferred {
		s.Stage = inferred
	}
	return RestoreResult{Live: s.Stage, Inferred: inferred, Adopted: adoptInferred}
}

// FileStore keeps snapshots as JSON files in one directory per owner under Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (f *FileStore) Save(_ context.Context, owner string, snap Snapshot) (string, error) {
	if !ValidName(owner) {
		return "", fmt.Errorf("%w: owner %q", ErrInvalidName, owner)
	}
	if snap.Timestamp == "" {
		snap.Timestamp = time.Now().Format(TimestampLayout)
	}
	name := SnapshotName(snap.Timestamp)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Join(f.Dir, owner)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return name, nil
}

func (f *FileStore) Load(_ context.Context, owner, name string) (Snapshot, error) {
	if !ValidName(name) {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !ValidName(owner) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}

	data, err := os.ReadFile(filepath.Join(f.Dir, owner, name))
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// DecodeSnapshot parses snapshot JSON. A missing user_data yields an empty profile.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.UserData == nil {
		snap.UserData = NewProfile()
	}
	return snap, nil
}
