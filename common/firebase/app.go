package firebase

import (
	"context"
	"fmt"
	"vitalmesh/common/config"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// NewApp 初始化 Firebase Admin App
// CredentialsFile 为空时走 Application Default Credentials
func NewApp(ctx context.Context, cfg *config.FirebaseConfig) (*firebase.App, error) {
	fbCfg := &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return app, nil
}
