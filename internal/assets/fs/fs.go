package fs

import (
	"fmt"
	"os"

	"festival-bot/internal/models"
)

// Provider serves assets from fixed paths on disk.
type Provider struct {
	paths map[string]string
}

func New(paths map[string]string) *Provider {
	return &Provider{paths: paths}
}

func (p *Provider) Name() string { return "fs" }

func (p *Provider) Load(logical string) ([]byte, error) {
	path, ok := p.paths[logical]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrAssetUnavailable, logical)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrAssetUnavailable, logical, err)
	}
	return data, nil
}
