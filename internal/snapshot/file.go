package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile writes the run as indented json, the file is replaced
// atomically.
func WriteFile(path string, run Run) error {
	content, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(append(content, '\n'))
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func ReadFile(path string) (Run, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Run{}, err
	}
	var run Run
	err = json.Unmarshal(content, &run)
	if err != nil {
		return Run{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return run, nil
}
