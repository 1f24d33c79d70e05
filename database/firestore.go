package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/Black-And-White-Club/photoseason/config"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DatastoreScope is the OAuth scope Firestore requires.
const DatastoreScope = "https://www.googleapis.com/auth/datastore"

// ErrMissingProjectID is returned when no Firestore project is configured.
var ErrMissingProjectID = errors.New("firestore project id is required")

// NewFirestoreClient connects to Firestore. An emulator host skips
// authentication; otherwise the credentials file, or the application default
// credentials, are used.
func NewFirestoreClient(ctx context.Context, cfg config.FirestoreConfig, logger *slog.Logger) (*firestore.Client, error) {
	opts, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	if cfg.EmulatorHost != "" {
		logger.InfoContext(ctx, "Connected to Firestore emulator",
			slog.String("host", cfg.EmulatorHost),
			slog.String("project_id", cfg.ProjectID),
		)
	} else {
		logger.InfoContext(ctx, "Connected to Firestore", slog.String("project_id", cfg.ProjectID))
	}
	return client, nil
}

func clientOptions(ctx context.Context, cfg config.FirestoreConfig) ([]option.ClientOption, error) {
	if cfg.ProjectID == "" {
		return nil, ErrMissingProjectID
	}

	if cfg.EmulatorHost != "" {
		return []option.ClientOption{
			option.WithEndpoint(cfg.EmulatorHost),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}, nil
	}

	var (
		creds *google.Credentials
		err   error
	)
	if cfg.CredentialsFile != "" {
		data, readErr := os.ReadFile(cfg.CredentialsFile)
		if readErr != nil {
			return nil, fmt.Errorf("read firestore credentials: %w", readErr)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, DatastoreScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, DatastoreScope)
	}
	if err != nil {
		return nil, fmt.Errorf("load firestore credentials: %w", err)
	}
	return []option.ClientOption{option.WithCredentials(creds)}, nil
}
