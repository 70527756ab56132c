package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/snzark/crm/server/auth/key"
	"github.com/snzark/crm/server/gcalendar"
	"github.com/snzark/crm/server/gstorage"
	"github.com/snzark/crm/server/logger"
	"github.com/snzark/crm/server/mailer"
	"github.com/snzark/crm/server/models"
	"github.com/snzark/crm/server/twilio"
	"github.com/snzark/crm/server/work"
	"github.com/snzark/crm/shared"
	"github.com/snzark/crm/utils"
	"golang.org/x/sync/errgroup"
)

const (
	DEFAULT_MAX_IMPORT_CONTACTS = 5000
	DEFAULT_MAX_UPLOAD_BYTES    = 4 << 20
)

var (
	logg = logger.NewLogger()

	crmConfig     shared.CrmConfig
	authKeyPair   *key.KeyPair
	workerPool    *work.WorkerPoolAdapter
	fileStorage   gstorage.Storage
	backupStorage *gstorage.GStorage
	mailService   mailer.Mailer
	smsService    twilio.Notifier
	calendarAPI   gcalendar.GCalendarAPIInterface
)

// Start opens the database, starts the job workers & serves the crm API
// until SIGINT/SIGTERM is received.
func Start(config shared.ServerConfig, devMode bool) error {
	var err error

	configDir, err := configDirectory(devMode)
	if err != nil {
		return err
	}
	applyDefaults(&config, configDir)
	crmConfig = config.Crm

	authKeyPair, err = key.NewKeyPairFromRSAPrivateKeyPem(config.Crm.PrivateKeyPem)
	if err != nil {
		return err
	}

	err = models.AutoMigrate(config.Database)
	if err != nil {
		return err
	}

	err = initServices(config, devMode)
	if err != nil {
		return err
	}

	workerPool = work.NewWorkerAdapter(config.Crm.Cron.TimeZone, config.Crm.Workers)
	err = registerJobHandlers(workerPool)
	if err != nil {
		return err
	}

	err = schedulePeriodicJobs(workerPool, config.Google.Storage)
	if err != nil {
		return err
	}
	workerPool.Start()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%v", config.Crm.Listener.Port),
		Handler:           newRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A failing listener cancels ctx, so cleanup runs on both paths
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return serve(server)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		cleanup(workerPool, server, config.Google.Storage.EnableBackup)
		return nil
	})

	return group.Wait()
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func initServices(config shared.ServerConfig, devMode bool) error {
	var err error

	mailService = mailer.NewMailer(config.Smtp, devMode)
	smsService = twilio.NewNotifier(config.Twilio, devMode)

	googleConfig := config.Google
	if googleConfig.Storage.Bucket != "" && !devMode {
		backupStorage, err = gstorage.NewGStorage(
			googleConfig.ApplicationCredentials,
			googleConfig.Storage.Bucket,
			googleConfig.Storage.Prefix,
		)
		if err != nil {
			return err
		}
		fileStorage = backupStorage
	} else {
		fileStorage, err = gstorage.NewLocalStorage(config.Crm.Uploads.Dir, config.Crm.AppURL)
		if err != nil {
			return err
		}
	}

	if googleConfig.Calendar.Enabled && !devMode {
		calendarAPI, err = gcalendar.NewGoogleCalendarAPI(
			context.Background(),
			googleConfig.ApplicationCredentials,
			googleConfig.Calendar.CalendarID,
			googleConfig.Calendar.TimeZone,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func applyDefaults(config *shared.ServerConfig, configDir string) {
	if config.Crm.AppURL == "" {
		config.Crm.AppURL = fmt.Sprintf("http://localhost:%v", config.Crm.Listener.Port)
	}
	if config.Crm.Import.MaxContacts == 0 {
		config.Crm.Import.MaxContacts = DEFAULT_MAX_IMPORT_CONTACTS
	}
	if config.Crm.Uploads.MaxBytes == 0 {
		config.Crm.Uploads.MaxBytes = DEFAULT_MAX_UPLOAD_BYTES
	}
	if config.Crm.Uploads.Dir == "" {
		config.Crm.Uploads.Dir = filepath.Join(configDir, "uploads")
	}
	if config.Crm.Workers == 0 {
		config.Crm.Workers = work.DEFAULT_CONCURRENCY
	}
	if config.Database.Dir == "" {
		config.Database.Dir = configDir
	}
}

func serve(server *http.Server) error {
	logg.Infof("CRM server is listening on port%v", server.Addr)
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("CRM server failed: %v", err)
	}
	return nil
}

func cleanup(workerPool *work.WorkerPoolAdapter, server *http.Server, backupDb bool) {
	// Stop processing jobs before the db goes away
	workerPool.Stop()

	if backupDb {
		if err := backupDatabase(nil); err != nil {
			logg.Error(err)
		}
	}

	// Shutdown server gracefully
	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Errorf("CRM server shutdown failed:%+s", err)
	}

	if err := models.Close(); err != nil {
		logg.Error(err)
	}

	if backupStorage != nil {
		if err := backupStorage.Close(); err != nil {
			logg.Error(err)
		}
	}

	logg.Infof("CRM server stopped properly")
}

// configDirectory retrieves the directory to store crm data, creating it if needed.
// Dev mode keeps everything in ./dev.
func configDirectory(devMode bool) (string, error) {
	configFolderName := ".crm"
	rootDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}

	configDir := filepath.Join(rootDir, configFolderName)
	err = utils.CreateDirIfNotExist(configDir)
	if err != nil {
		return "", err
	}

	return configDir, nil
}
