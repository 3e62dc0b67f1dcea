package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aquamarinepk/aqm"
)

// RemoteLoader reads the catalog from the menu service.
type RemoteLoader struct {
	client *aqm.ServiceClient
}

func NewRemoteLoader(client *aqm.ServiceClient) *RemoteLoader {
	return &RemoteLoader{client: client}
}

func (l *RemoteLoader) Load(ctx context.Context) (*Snapshot, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("menu client not configured")
	}

	var snap Snapshot
	if err := l.list(ctx, "products", &snap.Products); err != nil {
		return nil, err
	}
	if err := l.list(ctx, "notes", &snap.Notes); err != nil {
		return nil, err
	}
	if err := l.list(ctx, "tables", &snap.Tables); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (l *RemoteLoader) list(ctx context.Context, resource string, dest interface{}) error {
	resp, err := l.client.List(ctx, resource)
	if err != nil {
		return fmt.Errorf("cannot list %s: %w", resource, err)
	}
	if err := decodeSuccessResponse(resp, dest); err != nil {
		return fmt.Errorf("cannot decode %s: %w", resource, err)
	}
	return nil
}

// decodeSuccessResponse copies the dynamic response payload into dest.
func decodeSuccessResponse(resp *aqm.SuccessResponse, dest interface{}) error {
	if resp == nil {
		return errors.New("nil success response")
	}

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, dest)
}

// FileLoader reads a catalog snapshot from a JSON file.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(ctx context.Context) (*Snapshot, error) {
	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("cannot read catalog file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("cannot parse catalog file: %w", err)
	}
	return &snap, nil
}
