package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"resplan/internal/artifact"
	"resplan/internal/capacity"
)

const (
	proposalMetadataFile = "proposal.json"
	proposalDiffFile     = "changes.diff"
)

// ProposalMetadata describes a stored allocation proposal.
type ProposalMetadata struct {
	ID          string    `json:"id"`
	Actor       string    `json:"actor"`
	CreatedAt   time.Time `json:"created_at"`
	DataDir     string    `json:"data_dir"`
	ProposalDir string    `json:"proposal_dir"`
	Files       []string  `json:"files"`
	DiffFile    string    `json:"diff_file,omitempty"`
	// BaseChecksum is the sha256 of allocations.yml when the proposal was made.
	BaseChecksum string `json:"base_checksum"`
	Note         string `json:"note,omitempty"`
}

// CreateProposal writes the proposed allocation collection, a unified diff against
// the current allocations.yml and proposal.json into a new directory under
// proposalsRoot. The data directory is not touched.
func CreateProposal(actor, dataDir, proposalsRoot string, allocations []capacity.Allocation, note string) (*ProposalMetadata, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, fmt.Errorf("actor is required")
	}
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if proposalsRoot == "" {
		proposalsRoot = filepath.Join("artifacts", "proposals")
	}
	if _, err := os.Stat(dataDir); err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}

	proposed, err := EncodeAllocations(allocations)
	if err != nil {
		return nil, err
	}
	if _, err := ParseAllocations(proposed, AllocationsFile); err != nil {
		return nil, fmt.Errorf("proposed allocations invalid: %w", err)
	}

	current, err := readOptional(filepath.Join(dataDir, AllocationsFile))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	proposalID := fmt.Sprintf("%s-%s", now.Format("20060102-150405"), uuid.NewString()[:8])
	proposalDir := filepath.Join(proposalsRoot, proposalID)
	if err := os.MkdirAll(proposalDir, 0o755); err != nil {
		return nil, fmt.Errorf("create proposal dir: %w", err)
	}
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.RemoveAll(proposalDir)
		}
	}()

	if err := artifact.WriteFile(filepath.Join(proposalDir, AllocationsFile), proposed); err != nil {
		return nil, err
	}

	diffText, err := unifiedDiff(current, proposed, AllocationsFile)
	if err != nil {
		return nil, err
	}
	meta := &ProposalMetadata{
		ID:           proposalID,
		Actor:        actor,
		CreatedAt:    now,
		DataDir:      dataDir,
		ProposalDir:  proposalDir,
		Files:        []string{AllocationsFile},
		BaseChecksum: checksum(current),
		Note:         strings.TrimSpace(note),
	}
	if strings.TrimSpace(diffText) != "" {
		if err := artifact.WriteFile(filepath.Join(proposalDir, proposalDiffFile), []byte(diffText)); err != nil {
			return nil, fmt.Errorf("write diff: %w", err)
		}
		meta.DiffFile = proposalDiffFile
	}

	if err := artifact.WriteJSON(filepath.Join(proposalDir, proposalMetadataFile), meta); err != nil {
		return nil, err
	}

	cleanup = false
	return meta, nil
}

// ApplyProposal validates a proposal and copies its files into the data directory.
// It refuses to apply when allocations.yml changed after the proposal was made.
func ApplyProposal(proposalDir string, confirm bool) (*ProposalMetadata, error) {
	if !confirm {
		return nil, fmt.Errorf("apply requires --i-understand confirmation")
	}
	if proposalDir == "" {
		return nil, fmt.Errorf("proposal path is required")
	}

	meta, err := ReadProposal(proposalDir)
	if err != nil {
		return nil, err
	}
	if len(meta.Files) == 0 {
		return nil, fmt.Errorf("proposal metadata lists no files to apply")
	}

	target := filepath.Join(meta.DataDir, AllocationsFile)
	current, err := readOptional(target)
	if err != nil {
		return nil, err
	}
	if checksum(current) != meta.BaseChecksum {
		return nil, fmt.Errorf("%s changed since proposal %s was created; create a new proposal", AllocationsFile, meta.ID)
	}

	for _, file := range meta.Files {
		if file != AllocationsFile {
			return nil, fmt.Errorf("proposal file %s is not an allocation file", file)
		}
		data, err := os.ReadFile(filepath.Join(proposalDir, file))
		if err != nil {
			return nil, fmt.Errorf("read proposal %s: %w", file, err)
		}
		if _, err := ParseAllocations(data, filepath.Join(proposalDir, file)); err != nil {
			return nil, fmt.Errorf("proposal validation failed: %w", err)
		}
		if err := artifact.WriteFile(filepath.Join(meta.DataDir, file), data); err != nil {
			return nil, fmt.Errorf("apply %s: %w", file, err)
		}
	}
	return meta, nil
}

// ReadProposal loads proposal.json from a proposal directory.
func ReadProposal(proposalDir string) (*ProposalMetadata, error) {
	var meta ProposalMetadata
	if err := artifact.ReadJSON(filepath.Join(proposalDir, proposalMetadataFile), &meta); err != nil {
		return nil, fmt.Errorf("proposal metadata: %w", err)
	}
	if meta.ProposalDir == "" {
		meta.ProposalDir = proposalDir
	}
	if meta.ID == "" || meta.Actor == "" || meta.DataDir == "" {
		return nil, fmt.Errorf("proposal metadata is missing required fields")
	}
	return &meta, nil
}

func unifiedDiff(current, proposed []byte, name string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(current)),
		B:        difflib.SplitLines(string(proposed)),
		FromFile: filepath.Join("data", name),
		ToFile:   filepath.Join("proposal", name),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", name, err)
	}
	return text, nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
