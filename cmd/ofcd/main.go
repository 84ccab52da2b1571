// Command ofcd is the OpenFlow reconciliation worker: it owns one OFC
// instance, reconciling the networks and ports declared in its SQLite store
// against the flows actually programmed on that controller.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ofcd/internal/adminapi"
	"ofcd/internal/eventhub"
	"ofcd/internal/ldap"
	"ofcd/internal/metrics"
	"ofcd/internal/ofcdriver"
	"ofcd/internal/reconciler"
	"ofcd/internal/store"
	"ofcd/internal/worker"
)

const Version = "1.0.0"

func main() {
	listenAddr := flag.String("listen", "127.0.0.1:9100", "Admin HTTP listen address")
	dbPath := flag.String("db", "/var/lib/ofcd/ofcd.db", "Path to SQLite database")
	ofcUUID := flag.String("ofc", "Default", "UUID of the OpenFlow controller this worker owns")
	ofcBaseURL := flag.String("ofc-url", "", "Base URL of the OFC HTTP driver (empty = in-memory fake driver, for development)")
	ofcTimeout := flag.Duration("ofc-timeout", 30*time.Second, "Timeout for OFC driver HTTP calls")
	sameVLANPolicy := flag.Bool("same-vlan-policy", false, "Enforce the same-VLAN port-mix and broadcast-VLAN constraints")
	testMode := flag.Bool("test-mode", false, "Skip real driver port-validity checks and clear-all calls (development/CI)")
	ldapServer := flag.String("ldap-server", "", "LDAP server for admin API basic auth (empty disables auth)")
	ldapBindDN := flag.String("ldap-bind-dn", "", "LDAP service-account bind DN")
	ldapBindPassword := flag.String("ldap-bind-password", "", "LDAP service-account bind password")
	ldapBaseDN := flag.String("ldap-base-dn", "", "LDAP base DN to search for admin users")
	ldapAdminGroup := flag.String("ldap-admin-group", "", "LDAP group required for admin API access (empty admits any authenticated user)")
	bootstrap := flag.Bool("bootstrap", true, "Reconcile every known network once at startup")
	flag.Parse()

	log.Printf("ofcd %s starting: ofc=%s db=%s listen=%s", Version, *ofcUUID, *dbPath, *listenAddr)

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	var driver ofcdriver.Driver
	if *ofcBaseURL == "" {
		log.Printf("no -ofc-url given, using in-memory fake OFC driver")
		driver = ofcdriver.NewFake()
	} else {
		driver = ofcdriver.NewHTTPDriver(*ofcBaseURL, *ofcTimeout)
	}

	r := &reconciler.Reconciler{
		DB:      db,
		Driver:  driver,
		OFCUUID: *ofcUUID,
		Config: reconciler.Config{
			SameVLANPolicy: *sameVLANPolicy,
			TestMode:       *testMode,
		},
		Logger: log.Default(),
	}

	hub := eventhub.New()
	go hub.Run()

	m := metrics.New()

	w := worker.New(*ofcUUID, r, hub, m, log.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if *bootstrap {
		go bootstrapReconcile(db, w)
	}

	registry := adminapi.NewRegistry()
	registry.Add(*ofcUUID, w)

	var ldapCfg *ldap.Config
	if *ldapServer != "" {
		ldapCfg = &ldap.Config{
			Enabled:         true,
			Server:          *ldapServer,
			Port:            389,
			BindDN:          *ldapBindDN,
			BindPassword:    *ldapBindPassword,
			BaseDN:          *ldapBaseDN,
			UserFilter:      "(&(objectClass=user)(uid={username}))",
			UserIDAttribute: "uid",
			AdminGroup:      *ldapAdminGroup,
			Timeout:         10,
		}
		if *ldapAdminGroup != "" {
			ldapCfg.GroupBaseDN = *ldapBaseDN
			ldapCfg.GroupFilter = "(&(objectClass=groupOfNames)(member={user_dn}))"
		}
		if err := ldap.ValidateConfig(ldapCfg); err != nil {
			log.Fatalf("invalid LDAP configuration: %v", err)
		}
		log.Printf("admin API protected by LDAP basic auth against %s", *ldapServer)
	}

	router := adminapi.NewRouter(registry, m, hub, ldapCfg)
	srv := &http.Server{
		Addr:         *listenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("admin API listening on %s", *listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin API server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down gracefully...")

	if err := w.Enqueue(worker.Task{Kind: worker.TaskExit}); err != nil {
		log.Printf("failed to enqueue exit task: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("admin API shutdown error: %v", err)
	}

	log.Println("ofcd stopped")
}

// bootstrapReconcile enqueues an update-net task for every network already
// in the store, so a restarted worker converges existing state instead of
// waiting for the next external change notification.
func bootstrapReconcile(db *sql.DB, w *worker.Worker) {
	uuids, err := store.ListNetUUIDs(db)
	if err != nil {
		log.Printf("bootstrap: failed to list networks: %v", err)
		return
	}
	for _, uuid := range uuids {
		if err := w.Enqueue(worker.Task{Kind: worker.TaskUpdateNet, NetID: uuid}); err != nil {
			log.Printf("bootstrap: failed to enqueue net %s: %v", uuid, err)
		}
	}
}
