package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig selects the Firestore project and credentials.
type FirestoreConfig struct {
	ProjectID string
	// CredentialsFile is a service account JSON; empty uses application
	// default credentials.
	CredentialsFile string
	// Timeout bounds every call; zero disables the bound.
	Timeout time.Duration
}

// Firestore is a Store over Cloud Firestore.
type Firestore struct {
	client  *firestore.Client
	timeout time.Duration
}

// NewFirestore opens a Firestore client.
func NewFirestore(ctx context.Context, cfg FirestoreConfig) (*Firestore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: connect: %w", err)
	}
	return &Firestore{client: client, timeout: cfg.Timeout}, nil
}

// Close releases the client.
func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

func (f *Firestore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	return f.Query(ctx, collection)
}

func (f *Firestore) GetByID(ctx context.Context, collection, id string) (Document, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	snap, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("firestore: get %s/%s: %w", collection, id, err)
	}
	return fromSnapshot(snap), nil
}

func (f *Firestore) Save(ctx context.Context, collection string, doc Document) (string, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	coll := f.client.Collection(collection)
	id := doc.ID()
	if id == "" {
		id = coll.NewDoc().ID
	}
	data := doc.Clone()
	data[FieldID] = id
	if _, err := coll.Doc(id).Set(ctx, map[string]any(data), firestore.MergeAll); err != nil {
		return "", fmt.Errorf("firestore: save %s/%s: %w", collection, id, err)
	}
	return id, nil
}

func (f *Firestore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	if _, err := f.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (f *Firestore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	q := f.client.Collection(collection).Query
	for _, flt := range filters {
		if flt.Field == "" {
			return nil, errors.New("firestore: filter without field")
		}
		q = q.Where(flt.Field, string(flt.Op), flt.Value)
	}
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore: query %s: %w", collection, err)
	}
	out := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, fromSnapshot(snap))
	}
	return out, nil
}

func fromSnapshot(snap *firestore.DocumentSnapshot) Document {
	d := Document(snap.Data())
	if d == nil {
		d = Document{}
	}
	d[FieldID] = snap.Ref.ID
	return d
}
