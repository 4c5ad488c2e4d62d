package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dnfs3/dnfs3/internal/logger"
	contentfs "github.com/dnfs3/dnfs3/pkg/content/fs"
	"github.com/dnfs3/dnfs3/pkg/metadata"
	"github.com/dnfs3/dnfs3/pkg/metadata/memory"
	"github.com/dnfs3/dnfs3/pkg/metrics"

	nfsAdapter "github.com/dnfs3/dnfs3/pkg/adapter/nfs"
)

// bootstrapAuthContext builds the synthetic superuser identity used while
// seeding a share's initial file tree. No client has connected yet, so
// there is no AUTH_UNIX credential to map - the store is asked to act on
// behalf of root directly.
func bootstrapAuthContext(ctx context.Context) *metadata.AuthContext {
	rootUID := uint32(0)
	rootGID := uint32(0)
	return &metadata.AuthContext{
		Context:    ctx,
		AuthMethod: "system",
		Identity:   &metadata.Identity{UID: &rootUID, GID: &rootGID},
		ClientAddr: "127.0.0.1",
	}
}

func createInitialStructure(ctx context.Context, store metadata.MetadataStore, contentStore *contentfs.FSContentStore, rootHandle metadata.FileHandle) error {
	authCtx := bootstrapAuthContext(ctx)
	now := time.Now()

	imagesAttr := &metadata.FileAttr{
		Type:  metadata.FileTypeDirectory,
		Mode:  0755,
		UID:   501,
		GID:   20,
		Size:  4096,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}

	imagesHandle, err := store.Create(authCtx, rootHandle, "images", imagesAttr)
	if err != nil {
		return fmt.Errorf("failed to create images directory: %w", err)
	}

	imageFiles := []struct {
		name    string
		content string
	}{
		{"background1.png", "PNG image content for background1"},
		{"background2.jpg", "JPEG image content for background2"},
		{"wallpaper.png", "PNG image content for wallpaper"},
	}

	for _, img := range imageFiles {
		if err := writeSeedFile(ctx, store, contentStore, authCtx, imagesHandle, img.name, img.content, now); err != nil {
			return fmt.Errorf("failed to create %s: %w", img.name, err)
		}
	}

	textFiles := []struct {
		name    string
		content string
	}{
		{"readme.txt", "This is a README file.\nWelcome to dittofs!\n"},
		{"notes.txt", "Some notes about this NFS server.\nIt's pretty cool!\n"},
	}

	for _, txt := range textFiles {
		if err := writeSeedFile(ctx, store, contentStore, authCtx, rootHandle, txt.name, txt.content, now); err != nil {
			return fmt.Errorf("failed to create %s: %w", txt.name, err)
		}
	}

	return nil
}

// writeSeedFile creates a regular file through the metadata store, then
// writes its body through the content store using the ContentID the store
// assigned. The two stores are coordinated the same way a WRITE handler
// coordinates them: metadata first, content second.
func writeSeedFile(ctx context.Context, store metadata.MetadataStore, contentStore *contentfs.FSContentStore, authCtx *metadata.AuthContext, parent metadata.FileHandle, name, body string, now time.Time) error {
	attr := &metadata.FileAttr{
		Type:  metadata.FileTypeRegular,
		Mode:  0644,
		UID:   501,
		GID:   20,
		Size:  uint64(len(body)),
		Atime: now,
		Mtime: now,
		Ctime: now,
	}

	handle, err := store.Create(authCtx, parent, name, attr)
	if err != nil {
		return err
	}

	created, err := store.GetFile(ctx, handle)
	if err != nil {
		return fmt.Errorf("read back created attributes: %w", err)
	}

	return contentStore.WriteContent(ctx, created.ContentID, []byte(body))
}

func main() {
	port := flag.Int("port", 2049, "Port to listen on")
	logLevel := flag.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	contentPath := flag.String("content-path", "/tmp/dittofs-content", "Path to store file content")

	maxConnections := flag.Int("max-connections", 0, "Maximum concurrent connections (0 = unlimited)")
	readTimeout := flag.Duration("read-timeout", 30*time.Second, "Read timeout for RPC requests")
	writeTimeout := flag.Duration("write-timeout", 30*time.Second, "Write timeout for RPC responses")
	idleTimeout := flag.Duration("idle-timeout", 5*time.Minute, "Idle timeout between requests")
	shutdownTimeout := flag.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")

	dumpRestricted := flag.Bool("dump-restricted", false, "Restrict DUMP to localhost only")

	metricsInterval := flag.Duration("metrics-interval", 5*time.Minute, "Interval for logging metrics (0 to disable)")
	metricsPort := flag.Int("metrics-port", 9090, "Port for the Prometheus /metrics endpoint (0 to disable)")

	flag.Parse()

	logger.SetLevel(*logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("DittoFS - Dynamic NFS Server")
	logger.Info("Log level set to: %s", *logLevel)
	logger.Info("Content storage path: %s", *contentPath)

	contentStore, err := contentfs.NewFSContentStore(ctx, *contentPath)
	if err != nil {
		log.Fatalf("Failed to create content store: %v", err)
	}

	metadataStore := memory.NewMemoryMetadataStore()

	serverConfig := metadata.ServerConfig{}
	if *dumpRestricted {
		serverConfig.DumpAllowedClients = []string{"127.0.0.1", "::1"}
		logger.Info("DUMP access restricted to localhost")
	} else {
		logger.Info("DUMP access unrestricted (default)")
	}
	if err := metadataStore.SetServerConfig(ctx, serverConfig); err != nil {
		log.Fatalf("Failed to set server config: %v", err)
	}

	now := time.Now()
	rootAttr := &metadata.FileAttr{
		Type:  metadata.FileTypeDirectory,
		Mode:  0755,
		UID:   501,
		GID:   20,
		Size:  4096,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}

	anonUID := uint32(metadata.DefaultAnonUID)
	anonGID := uint32(metadata.DefaultAnonGID)

	if err := metadataStore.AddShare(ctx, "/export", metadata.ShareOptions{
		ReadOnly: false,
		Async:    true,
		IdentityMapping: &metadata.IdentityMapping{
			MapAllToAnonymous: true,
			AnonymousUID:      &anonUID,
			AnonymousGID:      &anonGID,
		},
	}, rootAttr); err != nil {
		log.Fatalf("Failed to add share: %v", err)
	}
	logger.Info("Share added: /export (read-write, all squashed to anonymous)")

	if err := metadataStore.AddShare(ctx, "/nolocalhost", metadata.ShareOptions{
		ReadOnly:       false,
		Async:          true,
		AllowedClients: []string{"192.168.1.0/24"},
		DeniedClients:  []string{"192.168.1.50", "::1"},
		RequireAuth:    false,
		IdentityMapping: &metadata.IdentityMapping{
			MapAllToAnonymous: true,
			AnonymousUID:      &anonUID,
			AnonymousGID:      &anonGID,
		},
	}, rootAttr); err != nil {
		log.Fatalf("Failed to add restricted share: %v", err)
	}
	logger.Info("Share added: /nolocalhost (network restricted)")

	rootHandle, err := metadataStore.GetShareRoot(ctx, "/export")
	if err != nil {
		log.Fatalf("Failed to get share root: %v", err)
	}

	if err := createInitialStructure(ctx, metadataStore, contentStore, rootHandle); err != nil {
		log.Fatalf("Failed to create initial structure: %v", err)
	}
	logger.Info("Initial file structure created")

	var metricsServer *metrics.Server
	if *metricsPort > 0 {
		metrics.InitRegistry()
		metricsServer = metrics.NewServer(metrics.ServerConfig{Port: *metricsPort})
		if err := metricsServer.Start(ctx); err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
		logger.Info("Metrics server listening on port %d", metricsServer.Port())
	}

	adapterConfig := nfsAdapter.NFSConfig{
		Enabled:            true,
		Port:               *port,
		MaxConnections:     *maxConnections,
		ReadTimeout:        *readTimeout,
		WriteTimeout:       *writeTimeout,
		IdleTimeout:        *idleTimeout,
		ShutdownTimeout:    *shutdownTimeout,
		MetricsLogInterval: *metricsInterval,
	}

	logger.Info("Server configuration:")
	logger.Info("  Port: %d", adapterConfig.Port)
	if adapterConfig.MaxConnections > 0 {
		logger.Info("  Max connections: %d", adapterConfig.MaxConnections)
	} else {
		logger.Info("  Max connections: unlimited")
	}
	logger.Info("  Read timeout: %v", adapterConfig.ReadTimeout)
	logger.Info("  Write timeout: %v", adapterConfig.WriteTimeout)
	logger.Info("  Idle timeout: %v", adapterConfig.IdleTimeout)
	logger.Info("  Shutdown timeout: %v", adapterConfig.ShutdownTimeout)
	logger.Info("  Metrics interval: %v", adapterConfig.MetricsLogInterval)
	if adapterConfig.MetricsLogInterval == 0 {
		logger.Info("  (metrics logging disabled)")
	}

	srv := nfsAdapter.New(adapterConfig, metrics.NewNFSMetrics())
	srv.SetStores(metadataStore, contentStore)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running on port %d. Press Ctrl+C to stop.", *port)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error: %v", err)
			os.Exit(1)
		}
		if metricsServer != nil {
			if err := metricsServer.Stop(context.Background()); err != nil {
				logger.Error("Metrics server shutdown error: %v", err)
			}
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}
