package config

import (
	"os"
	"sync"
)

var (
	dockerEnvFile  = "/.dockerenv"
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether nl2db runs inside a Docker container,
// based on /.dockerenv. The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat(dockerEnvFile)
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps a loopback database host to host.docker.internal
// when running in Docker, so an SSH tunnel or local Postgres on the host
// machine stays reachable.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, inDocker bool) string {
	if inDocker && (host == "localhost" || host == "127.0.0.1") {
		return "host.docker.internal"
	}
	return host
}
