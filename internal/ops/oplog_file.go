package ops

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/lesterapp/lester/internal/bookmark"
	"github.com/lesterapp/lester/internal/config"
	"github.com/lesterapp/lester/internal/db"
	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/oplog"
)

// OpLogSchemaVersion is written in every op log header.
const OpLogSchemaVersion = "1.0"

// maxOpLineBytes bounds a single JSONL line.
const maxOpLineBytes = 4 << 20

// OpLogHeader is the first line of an exported op log.
type OpLogHeader struct {
	LesterOpLog   bool      `json:"_lester_oplog"`
	SchemaVersion string    `json:"schema_version"`
	DeviceID      uuid.UUID `json:"device_id"`
	ExportedAt    int64     `json:"exported_at"`
}

// ExportOpsInput contains parameters for the ExportOps operation.
type ExportOpsInput struct {
	// Path defaults to <base>/sync/<device>-<timestamp>.jsonl.
	Path        string
	DeviceID    uuid.UUID
	WorkspaceID string
}

// ExportOpsOutput contains the result of the ExportOps operation.
type ExportOpsOutput struct {
	Path       string    `json:"path"`
	DeviceID   uuid.UUID `json:"device_id"`
	Count      int       `json:"count"`
	ExportedAt int64     `json:"exported_at"`
}

// ExportOps writes the current bookmarks as an op log: one op per editable
// field, stamped with the bookmark's updated_at. The file is written to a temp
// path and renamed into place so an existing export survives a failure.
func ExportOps(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportOpsInput) (*ExportOpsOutput, error) {
	if input.DeviceID == uuid.Nil {
		return nil, errors.NewInvalidRequest("device id is required")
	}
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		dir, err := SyncDir()
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s-%s%s", input.DeviceID.String()[:8], now.Format("2006-01-02T150405"), OpLogExt)
		exportPath = filepath.Join(dir, name)
	}
	if err := checkOpLogPath(exportPath, false, cfg); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create sync directory: %w", err))
	}

	bookmarks, err := db.ListBookmarks(ctx, database, bookmark.Filter{WorkspaceID: input.WorkspaceID}, 0)
	if err != nil {
		return nil, err
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := createOpLogTemp(tempPath)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to create op log: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	if err := enc.Encode(OpLogHeader{
		LesterOpLog:   true,
		SchemaVersion: OpLogSchemaVersion,
		DeviceID:      input.DeviceID,
		ExportedAt:    now.Unix(),
	}); err != nil {
		return nil, errors.NewInternal(err)
	}

	count := 0
	for _, b := range bookmarks {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}
		fields := []struct {
			name  string
			value any
		}{
			{"url", b.URL},
			{"title", b.Title},
			{"notes", b.Notes},
		}
		for _, f := range fields {
			op, err := oplog.NewOp(input.DeviceID, "bookmark", b.ID, f.name, f.value, b.UpdatedAt)
			if err != nil {
				return nil, errors.NewInternal(err)
			}
			if err := enc.Encode(op); err != nil {
				return nil, errors.NewInternal(err)
			}
			count++
		}
	}

	if err := w.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close op log: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink at the destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize op log: %w", err))
	}

	success = true
	return &ExportOpsOutput{
		Path:       exportPath,
		DeviceID:   input.DeviceID,
		Count:      count,
		ExportedAt: now.Unix(),
	}, nil
}

// ReadOpLog loads an op log file. The header line is optional; without it the
// envelope's DeviceID is uuid.Nil. Blank lines are ignored.
func ReadOpLog(path string, cfg *config.Config) (*oplog.Envelope, error) {
	if err := checkOpLogPath(path, true, cfg); err != nil {
		return nil, err
	}
	file, err := openOpLog(path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(err)
	}
	defer file.Close()

	env := &oplog.Envelope{Ops: []oplog.Op{}}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOpLineBytes)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var header OpLogHeader
		if err := json.Unmarshal(line, &header); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("line %d: invalid JSON: %v", lineNum, err))
		}
		if header.LesterOpLog {
			if header.SchemaVersion != OpLogSchemaVersion {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("unsupported op log schema version %q", header.SchemaVersion))
			}
			env.DeviceID = header.DeviceID
			continue
		}

		var op oplog.Op
		if err := json.Unmarshal(line, &op); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("line %d: invalid op: %v", lineNum, err))
		}
		if err := ValidateOp(op); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("line %d: %s", lineNum, err.Error()))
		}
		if len(op.Value) == 0 {
			op.Value = json.RawMessage("null")
		}
		env.Ops = append(env.Ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("read op log: %v", err))
	}
	return env, nil
}

// ValidateOp checks that an op names what it edits.
func ValidateOp(op oplog.Op) error {
	switch {
	case op.Entity == "":
		return fmt.Errorf("op %s: entity is required", op.ID)
	case op.EntityID == "":
		return fmt.Errorf("op %s: entity_id is required", op.ID)
	case op.Field == "":
		return fmt.Errorf("op %s: field is required", op.ID)
	}
	return nil
}
