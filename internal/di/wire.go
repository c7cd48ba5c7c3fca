//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/app"
)

func InitializeApp() (*app.App, func(), error) {
	panic(wire.Build(
		ConfigSet,
		ObservabilitySet,
		RuntimeInfraSet,
		RepositorySet,
		SecuritySet,
		ServiceSet,
		HTTPSet,
		AppSet,
	))
}

func InitializeMigrationRunner() (*MigrationRunner, func(), error) {
	panic(wire.Build(
		ConfigSet,
		ObservabilitySet,
		provideOpenDB,
		NewMigrationRunner,
	))
}
