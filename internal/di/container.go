package di

import (
	"go.uber.org/dig"

	"github.com/aihub/jobboard-ai/internal/config"
)

// Container is the process-wide dependency injection container.
var Container *dig.Container

// InitContainer creates a fresh container and installs it as Container.
func InitContainer(opts ...dig.Option) *dig.Container {
	Container = dig.New(opts...)
	return Container
}

// Build creates the container and registers every provider for cfg.
func Build(cfg *config.Config, opts ...dig.Option) (*dig.Container, error) {
	c := InitContainer(opts...)
	if err := RegisterProviders(c, cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func GetContainer() *dig.Container {
	return Container
}

// Invoke runs function against the global container.
func Invoke(function interface{}, opts ...dig.InvokeOption) error {
	return Container.Invoke(function, opts...)
}

// Provide registers constructor on the global container.
func Provide(constructor interface{}, opts ...dig.ProvideOption) error {
	return Container.Provide(constructor, opts...)
}
