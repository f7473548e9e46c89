package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/k00jax/omi/internal/config"
	"github.com/k00jax/omi/pkg/provider/stt"
)

type nopSTT struct{}

func (nopSTT) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Session, error) {
	return nil, errors.New("not implemented")
}

func TestRegistry_CreateSTT(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	var gotEntry config.ProviderEntry
	r.RegisterSTT("fake", func(entry config.ProviderEntry) (stt.Provider, error) {
		gotEntry = entry
		return nopSTT{}, nil
	})

	entry := config.ProviderEntry{Name: "fake", APIKey: "k", Model: "m"}
	p, err := r.CreateSTT(entry)
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p == nil {
		t.Fatal("CreateSTT returned nil provider")
	}
	if gotEntry.APIKey != "k" || gotEntry.Model != "m" {
		t.Errorf("factory received entry %+v, want api key and model forwarded", gotEntry)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	_, err := r.CreateSTT(config.ProviderEntry{Name: "missing"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
	_, err = r.CreateEmbeddings(config.ProviderEntry{Name: "missing"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("embeddings err = %v, want ErrProviderNotRegistered", err)
	}
}
