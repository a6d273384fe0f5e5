package mediaroute

import (
	"github.com/wagiedev/mediaroute-go/internal/binding"
	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/subprocess"
)

// ServiceBinder establishes bindings to provider services.
// Implement this to connect providers over a custom transport.
//
// The bundled implementations are StreamBinder, which talks to services over
// unix domain sockets or child process stdio, and Registry, which connects
// to in-process services.
type ServiceBinder = binding.ServiceBinder

// ServiceConnection receives binding callbacks from a ServiceBinder.
type ServiceConnection = binding.ServiceConnection

// Messenger sends messages to a service endpoint.
type Messenger = channel.Messenger

// Message is one unit of IPC between client and service.
type Message = channel.Message

// Registry is an in-process ServiceBinder.
type Registry = binding.Registry

// ServiceFactory starts an in-process service and returns its endpoint.
type ServiceFactory = binding.ServiceFactory

// StreamBinder binds to provider services reached over a byte stream.
type StreamBinder = binding.Stream

// ProcessService describes how to launch a provider service executable.
type ProcessService = subprocess.Service

// NewRegistry creates an empty in-process ServiceBinder.
func NewRegistry(opts ...Option) *Registry {
	return binding.NewRegistry(loggerOrNop(applyOptions(opts)))
}

// NewSocketBinder creates a ServiceBinder that resolves components to
// unix socket paths.
func NewSocketBinder(paths map[ComponentName]string, opts ...Option) *StreamBinder {
	options := applyOptions(opts)

	return binding.NewSocket(loggerOrNop(options), streamLimits(options), paths)
}

// NewProcessBinder creates a ServiceBinder that launches a service process
// per bind and talks to it over stdin and stdout. Unbinding kills the
// process. An unexpected exit is reported as a disconnect.
func NewProcessBinder(services map[ComponentName]ProcessService, opts ...Option) *StreamBinder {
	options := applyOptions(opts)
	log := loggerOrNop(options)

	return binding.NewStream(log, streamLimits(options), subprocess.NewLauncher(log, services))
}

func streamLimits(options *Options) channel.Limits {
	if options.Limits.MaxPayloadBytes > 0 {
		return options.Limits
	}

	return channel.DefaultLimits()
}
