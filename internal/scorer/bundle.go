package scorer

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/booking-risk/internal/model"
)

// ManifestFile is the optional manifest inside a model directory.
const ManifestFile = "manifest.yaml"

// Manifest names the artifact files of a model bundle, relative to its directory.
type Manifest struct {
	Version          string `yaml:"version"`
	Encoder          string `yaml:"encoder"`
	CancelModel      string `yaml:"cancel_model"`
	BrokenRouteModel string `yaml:"broken_route_model"`
}

// DefaultManifest is used when a model directory has no manifest.
func DefaultManifest() Manifest {
	return Manifest{
		Encoder:          "encoder.json",
		CancelModel:      "cancel_model.json",
		BrokenRouteModel: "broken_route_model.json",
	}
}

// Paths are absolute artifact locations.
type Paths struct {
	Version          string
	Encoder          string
	CancelModel      string
	BrokenRouteModel string
}

// ResolvePaths reads dir/manifest.yaml when present and fills unset entries
// from DefaultManifest.
func ResolvePaths(dir string) (Paths, error) {
	m := DefaultManifest()

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Paths{}, &model.ModelsNotLoadedError{Artifact: ManifestFile, Err: err}
	default:
		var fromFile Manifest
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return Paths{}, &model.ModelsNotLoadedError{Artifact: ManifestFile, Err: eris.Wrap(err, "scorer: parse manifest")}
		}
		m.Version = fromFile.Version
		if fromFile.Encoder != "" {
			m.Encoder = fromFile.Encoder
		}
		if fromFile.CancelModel != "" {
			m.CancelModel = fromFile.CancelModel
		}
		if fromFile.BrokenRouteModel != "" {
			m.BrokenRouteModel = fromFile.BrokenRouteModel
		}
	}

	return Paths{
		Version:          m.Version,
		Encoder:          filepath.Join(dir, m.Encoder),
		CancelModel:      filepath.Join(dir, m.CancelModel),
		BrokenRouteModel: filepath.Join(dir, m.BrokenRouteModel),
	}, nil
}

// Bundle is a loaded encoder plus both classifiers. It is immutable and safe
// for concurrent use.
type Bundle struct {
	Version     string
	Encoder     *Encoder
	Cancel      Classifier
	BrokenRoute Classifier
}

// Bundle implements BundleSource.
func (b *Bundle) Bundle() (*Bundle, error) {
	return b, nil
}

// LoadBundle reads and validates all three artifacts. Any failure is a
// ModelsNotLoadedError naming the artifact.
func LoadBundle(p Paths) (*Bundle, error) {
	enc, err := loadEncoder(p.Encoder)
	if err != nil {
		return nil, &model.ModelsNotLoadedError{Artifact: p.Encoder, Err: err}
	}
	cancel, err := loadClassifier(p.CancelModel)
	if err != nil {
		return nil, &model.ModelsNotLoadedError{Artifact: p.CancelModel, Err: err}
	}
	broken, err := loadClassifier(p.BrokenRouteModel)
	if err != nil {
		return nil, &model.ModelsNotLoadedError{Artifact: p.BrokenRouteModel, Err: err}
	}

	zap.L().Info("scorer: models loaded",
		zap.String("version", p.Version),
		zap.Int("encoded_width", enc.Width()),
	)

	return &Bundle{Version: p.Version, Encoder: enc, Cancel: cancel, BrokenRoute: broken}, nil
}

// LoadDir resolves a model directory and loads its bundle.
func LoadDir(dir string) (*Bundle, error) {
	p, err := ResolvePaths(dir)
	if err != nil {
		return nil, err
	}
	return LoadBundle(p)
}

func loadEncoder(path string) (*Encoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: read encoder")
	}
	var enc Encoder
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, eris.Wrap(err, "scorer: decode encoder")
	}
	if err := enc.init(); err != nil {
		return nil, err
	}
	return &enc, nil
}

func loadClassifier(path string) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: read classifier")
	}
	return DecodeClassifier(data)
}

// BundleSource supplies the model bundle used for scoring.
type BundleSource interface {
	Bundle() (*Bundle, error)
}

// Lazy loads a bundle from a directory on first use and keeps it for the life
// of the process. A failed load is retried on the next call.
type Lazy struct {
	dir  string
	load func(dir string) (*Bundle, error)

	mu     sync.Mutex
	bundle *Bundle
}

// NewLazy returns a Lazy bundle source for dir.
func NewLazy(dir string) *Lazy {
	return &Lazy{dir: dir, load: LoadDir}
}

// Bundle returns the loaded bundle, loading it if needed.
func (l *Lazy) Bundle() (*Bundle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.bundle != nil {
		return l.bundle, nil
	}
	b, err := l.load(l.dir)
	if err != nil {
		return nil, err
	}
	l.bundle = b
	return b, nil
}

// Loaded reports whether the bundle has been loaded.
func (l *Lazy) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bundle != nil
}
