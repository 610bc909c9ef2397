// Package app composes the Gestly domain services, the event hub and the
// background jobs into one Application.
//
//	internal/app/
//	├── application.go   wiring and lifecycle
//	├── domain/          models (pure data)
//	├── storage/         store interfaces plus memory, postgres and supabase backends
//	├── services/        business rules per domain
//	├── events/          in-process event hub (realtime and webhooks)
//	├── jobs/            cron scheduler for reminders and campaigns
//	├── httpapi/         dashboard, public and webhook HTTP surfaces
//	├── runtime/         config to running process
//	├── system/          lifecycle manager
//	└── metrics/         prometheus collectors
//
// Dependencies flow downward: httpapi and runtime depend on app, app on
// services, services on storage and domain.
package app
