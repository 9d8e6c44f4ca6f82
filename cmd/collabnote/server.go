/*
 * Copyright 2025 The CollabNote Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/collabnote/collabnote/server"
	"github.com/collabnote/collabnote/server/backend/database/mongo"
	"github.com/collabnote/collabnote/server/logging"
)

var (
	gracefulTimeout = 10 * time.Second
)

var (
	flagConfPath string
	flagLogLevel string

	housekeepingFlushInterval         time.Duration
	housekeepingPresenceEvictInterval time.Duration

	backendActiveUserWindow time.Duration
	backendCursorWindow     time.Duration
	backendPresenceMaxAge   time.Duration

	mongoConnectionURI     string
	mongoConnectionTimeout time.Duration
	mongoDatabase          string
	mongoPingTimeout       time.Duration

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start CollabNote server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.Housekeeping.FlushInterval = housekeepingFlushInterval.String()
			conf.Housekeeping.PresenceEvictInterval = housekeepingPresenceEvictInterval.String()

			conf.Backend.ActiveUserWindow = backendActiveUserWindow.String()
			conf.Backend.CursorWindow = backendCursorWindow.String()
			conf.Backend.PresenceMaxAge = backendPresenceMaxAge.String()

			if mongoConnectionURI != "" {
				conf.Mongo = &mongo.Config{
					ConnectionURI:     mongoConnectionURI,
					ConnectionTimeout: mongoConnectionTimeout.String(),
					Database:          mongoDatabase,
					PingTimeout:       mongoPingTimeout.String(),
				}
			}

			// If config file is given, command-line arguments will be overwritten.
			if flagConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}

			if err := logging.SetLogLevel(flagLogLevel); err != nil {
				return err
			}

			r, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := r.Start(); err != nil {
				return err
			}

			if code := handleSignal(r); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}
}

func handleSignal(r *server.CollabNote) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-r.ShutdownCh():
		// server is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}

	gracefulCh := make(chan struct{})
	go func() {
		if err := r.Shutdown(graceful); err != nil {
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func init() {
	cmd := newServerCmd()
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().IntVar(
		&conf.TCP.Port,
		"port",
		server.DefaultPort,
		"Port clients connect to",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"enable-pprof",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().DurationVar(
		&housekeepingFlushInterval,
		"housekeeping-flush-interval",
		server.DefaultHousekeepingFlushInterval,
		"interval between runs of the document flush task",
	)
	cmd.Flags().DurationVar(
		&housekeepingPresenceEvictInterval,
		"housekeeping-presence-evict-interval",
		server.DefaultHousekeepingPresenceEvictInterval,
		"interval between runs of the stale-presence eviction task",
	)
	cmd.Flags().DurationVar(
		&backendActiveUserWindow,
		"backend-active-user-window",
		server.DefaultActiveUserWindow,
		"recency window for a user to count as active on a document",
	)
	cmd.Flags().DurationVar(
		&backendCursorWindow,
		"backend-cursor-window",
		server.DefaultCursorWindow,
		"recency window for cursor positions replayed to joining sessions",
	)
	cmd.Flags().DurationVar(
		&backendPresenceMaxAge,
		"backend-presence-max-age",
		server.DefaultPresenceMaxAge,
		"age at which presence records are hard-deleted",
	)
	cmd.Flags().StringVar(
		&mongoConnectionURI,
		"mongo-connection-uri",
		"",
		"MongoDB's connection URI",
	)
	cmd.Flags().DurationVar(
		&mongoConnectionTimeout,
		"mongo-connection-timeout",
		server.DefaultMongoConnectionTimeout,
		"Mongo DB's connection timeout",
	)
	cmd.Flags().StringVar(
		&mongoDatabase,
		"mongo-database",
		server.DefaultMongoDatabase,
		"CollabNote's database name in MongoDB",
	)
	cmd.Flags().DurationVar(
		&mongoPingTimeout,
		"mongo-ping-timeout",
		server.DefaultMongoPingTimeout,
		"Mongo DB's ping timeout",
	)
	rootCmd.AddCommand(cmd)
}
