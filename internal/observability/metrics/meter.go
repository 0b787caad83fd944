// Copyright 2026 The Rentwise Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Config holds metrics configuration. Endpoint overrides the OTLP endpoint
// taken from OTEL_EXPORTER_OTLP_* variables.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Interval       time.Duration
}

// Provider hands out meters per instrumentation scope
type Provider struct {
	provider metric.MeterProvider
	sdk      *sdkmetric.MeterProvider
}

// New creates the provider and installs it globally when enabled. When
// disabled every instrument is a no-op.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{provider: noop.NewMeterProvider()}, nil
	}

	var opts []otlpmetrichttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	p := NewWithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), res)
	otel.SetMeterProvider(p.sdk)
	return p, nil
}

// NewWithReader builds an SDK provider over the given reader without
// installing it globally
func NewWithReader(reader sdkmetric.Reader, res *resource.Resource) *Provider {
	opts := []sdkmetric.Option{sdkmetric.WithReader(reader)}
	if res != nil {
		opts = append(opts, sdkmetric.WithResource(res))
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	return &Provider{provider: mp, sdk: mp}
}

// Meter returns the meter for the named scope
func (p *Provider) Meter(scope string) metric.Meter {
	return p.provider.Meter(scope)
}

// Shutdown exports pending measurements and stops the reader
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	if err := p.sdk.ForceFlush(ctx); err != nil {
		return fmt.Errorf("failed to flush metrics: %w", err)
	}
	return p.sdk.Shutdown(ctx)
}
