package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrmsu/ojtinsight/pkg/errors"
)

// FormatVersion is the only artifact format this build reads and writes.
const FormatVersion = "1.0"

// ArtifactSpec is the metadata block of a persisted component.
type ArtifactSpec struct {
	Name          string `json:"name"`           // component name (e.g., "LogisticRegression")
	FormatVersion string `json:"format_version"` // envelope version
}

// Artifact is the JSON envelope every trained component is saved in.
type Artifact struct {
	ModelSpec ArtifactSpec    `json:"model_spec"`
	Params    json.RawMessage `json:"params"`
}

// WriteArtifact encodes params under name and writes it to path. The file is
// written to a temporary sibling and renamed into place.
//
// Example:
//
//	err := model.WriteArtifact(filepath.Join(dir, "scaler.json"), "StandardScaler", scaler)
func WriteArtifact(path, name string, params interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return errors.Wrapf(err, "encode %s params", name)
	}

	data, err := json.MarshalIndent(Artifact{
		ModelSpec: ArtifactSpec{Name: name, FormatVersion: FormatVersion},
		Params:    raw,
	}, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s envelope", name)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp artifact")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename artifact to %s", path)
	}
	return nil
}

// ReadArtifact loads the envelope at path, checks that it holds a component
// called name and decodes its params into out.
func ReadArtifact(path, name string, out interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open artifact %s", path)
	}
	defer func() { _ = file.Close() }()

	art, err := DecodeArtifact(file)
	if err != nil {
		return errors.Wrapf(err, "artifact %s", path)
	}
	if art.ModelSpec.Name != name {
		return errors.NewValueError("ReadArtifact",
			fmt.Sprintf("expected %s, got %s", name, art.ModelSpec.Name))
	}
	if err := json.Unmarshal(art.Params, out); err != nil {
		return errors.Wrapf(err, "decode %s params", name)
	}
	return nil
}

// DecodeArtifact reads and validates an envelope from r.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	var art Artifact
	if err := json.NewDecoder(r).Decode(&art); err != nil {
		return nil, errors.Wrap(err, "failed to decode JSON")
	}

	if art.ModelSpec.FormatVersion == "" {
		return nil, errors.NewValueError("DecodeArtifact", "format_version is required")
	}
	if art.ModelSpec.FormatVersion != FormatVersion {
		return nil, errors.NewValueError("DecodeArtifact",
			fmt.Sprintf("unsupported format version: %s", art.ModelSpec.FormatVersion))
	}
	if art.ModelSpec.Name == "" {
		return nil, errors.NewValueError("DecodeArtifact", "model name is required")
	}
	if len(art.Params) == 0 {
		return nil, errors.NewValueError("DecodeArtifact", "params are required")
	}
	return &art, nil
}
