// Package firestore implements store.Store on Cloud Firestore. The Firebase
// app it is opened from is shared with the ID token verifier.
package firestore

import (
	"context"
	"sync"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

var (
	app     *firebase.App
	once    sync.Once
	initErr error
)

// InitApp 初始化进程内唯一的 Firebase App。credentialsPath 为空时使用默认凭据
// （包括 FIRESTORE_EMULATOR_HOST 下的模拟器）。
func InitApp(ctx context.Context, projectID, credentialsPath string, log *zap.Logger) (*firebase.App, error) {
	once.Do(func() {
		var opts []option.ClientOption
		if credentialsPath != "" {
			opts = append(opts, option.WithCredentialsFile(credentialsPath))
		}

		var conf *firebase.Config
		if projectID != "" {
			conf = &firebase.Config{ProjectID: projectID}
		}

		log.Info("Initializing Firebase", zap.String("project_id", projectID), zap.Bool("credentials_file", credentialsPath != ""))
		app, initErr = firebase.NewApp(ctx, conf, opts...)
		if initErr != nil {
			log.Error("Failed to init Firebase app", zap.Error(initErr))
		}
	})
	return app, initErr
}
