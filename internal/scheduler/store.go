package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

const storeVersion = 1

type jobStore struct {
	Version int   `json:"version"`
	Jobs    []Job `json:"jobs"`
}

func (st *jobStore) find(id string) int {
	return slices.IndexFunc(st.Jobs, func(j Job) bool { return j.ID == id })
}

func (st *jobStore) remove(id string) bool {
	n := len(st.Jobs)
	st.Jobs = slices.DeleteFunc(st.Jobs, func(j Job) bool { return j.ID == id })
	return len(st.Jobs) < n
}

// readStore loads path. A missing file is an empty store.
func readStore(path string) (jobStore, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return jobStore{Version: storeVersion}, nil
	}
	if err != nil {
		return jobStore{Version: storeVersion}, err
	}
	var st jobStore
	if err := json.Unmarshal(data, &st); err != nil {
		return jobStore{Version: storeVersion}, fmt.Errorf("parse %s: %w", path, err)
	}
	if st.Version == 0 {
		st.Version = storeVersion
	}
	return st, nil
}

// writeStore replaces path atomically so a crash never leaves half a file.
func writeStore(path string, st jobStore) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
