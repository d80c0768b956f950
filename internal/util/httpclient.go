// Package util provides shared HTTP clients, logging and concurrency helpers
package util

import (
	"crypto/tls"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

// IsDebug enables verbose logging across the extraction pipeline.
var IsDebug = false

var (
	sharedClient     *http.Client
	sharedClientOnce sync.Once

	// noRedirectClient never follows redirects so callers can read the
	// raw Location header. Many hosts serve a decoy 200 body on direct GET.
	noRedirectClient     *http.Client
	noRedirectClientOnce sync.Once
)

// httpClientConfig holds configuration for creating pooled HTTP clients
type httpClientConfig struct {
	timeout             time.Duration
	maxIdleConns        int
	maxIdleConnsPerHost int
	maxConnsPerHost     int
	idleConnTimeout     time.Duration
	tlsHandshakeTimeout time.Duration
	expectContinue      time.Duration
	keepAlive           time.Duration
	dialTimeout         time.Duration
}

func defaultConfig() httpClientConfig {
	return httpClientConfig{
		timeout:             30 * time.Second,
		maxIdleConns:        200,
		maxIdleConnsPerHost: 20,
		maxConnsPerHost:     50,
		idleConnTimeout:     120 * time.Second,
		tlsHandshakeTimeout: 5 * time.Second,
		expectContinue:      1 * time.Second,
		keepAlive:           30 * time.Second,
		dialTimeout:         5 * time.Second,
	}
}

// createTransport creates a pooled HTTP transport with the given config
func createTransport(cfg httpClientConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.dialTimeout,
			KeepAlive: cfg.keepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.maxIdleConns,
		MaxIdleConnsPerHost:   cfg.maxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.maxConnsPerHost,
		IdleConnTimeout:       cfg.idleConnTimeout,
		TLSHandshakeTimeout:   cfg.tlsHandshakeTimeout,
		ExpectContinueTimeout: cfg.expectContinue,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// GetSharedClient returns the shared HTTP client with connection pooling.
// Redirects are followed automatically.
func GetSharedClient() *http.Client {
	sharedClientOnce.Do(func() {
		cfg := defaultConfig()
		sharedClient = &http.Client{
			Transport: createTransport(cfg),
			Timeout:   cfg.timeout,
		}
	})
	return sharedClient
}

// GetNoRedirectClient returns a client that stops at the first response,
// exposing the Location header of 3xx answers to the caller.
func GetNoRedirectClient() *http.Client {
	noRedirectClientOnce.Do(func() {
		cfg := defaultConfig()
		noRedirectClient = &http.Client{
			Transport: createTransport(cfg),
			Timeout:   cfg.timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	})
	return noRedirectClient
}

// WorkerPool provides a safe way to run multiple goroutines with a limit
type WorkerPool struct {
	maxWorkers int
	semaphore  chan struct{}
}

// NewWorkerPool creates a new worker pool with the specified max concurrent workers
func NewWorkerPool(maxWorkers int) *WorkerPool {
	return &WorkerPool{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// Submit submits a task to the worker pool.
// It will block if all workers are busy until one becomes available.
func (wp *WorkerPool) Submit(task func()) {
	wp.semaphore <- struct{}{} // Acquire
	go func() {
		defer func() { <-wp.semaphore }() // Release
		task()
	}()
}

// Wait waits for all submitted tasks to complete
func (wp *WorkerPool) Wait() {
	for i := 0; i < wp.maxWorkers; i++ {
		wp.semaphore <- struct{}{}
	}
	for i := 0; i < wp.maxWorkers; i++ {
		<-wp.semaphore
	}
}

const randomStringChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomString returns a random alphanumeric string of the given length
func RandomString(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = randomStringChars[rand.Intn(len(randomStringChars))]
	}
	return string(b)
}
