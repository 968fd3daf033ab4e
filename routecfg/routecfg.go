// Package routecfg loads route definitions from YAML files.
//
// A file names the transport, an optional codec, and the routes with their
// operations in any order:
//
//	transport:
//	  name: redis-streams
//	  config:
//	    addr: 127.0.0.1:6379
//	routes:
//	  - name: orders
//	    source: orders.in
//	    destination: orders.out
//	    operations:
//	      - kind: BodySelector
//	        xpath: /order[@priority='high']
//	      - kind: CarryForwardContext
//	        application: {guid: shop, version: "1.0"}
//	        service_instance: router
//	        port: {name: out, direction: output}
//
// Operation kinds are the operation type names, matched case-insensitively.
package routecfg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/trickstertwo/xroute"
	"gopkg.in/yaml.v3"
)

// File is a parsed route definition file.
type File struct {
	Transport Transport
	Codec     string
	Routes    []xroute.Route
}

// Transport names a registered transport and its settings.
type Transport struct {
	Name   string         `yaml:"name"`
	Config map[string]any `yaml:"config"`
}

type fileDoc struct {
	Transport Transport  `yaml:"transport"`
	Codec     string     `yaml:"codec"`
	Routes    []routeDoc `yaml:"routes"`
}

type routeDoc struct {
	Name        string         `yaml:"name"`
	Source      string         `yaml:"source"`
	Destination string         `yaml:"destination"`
	Group       string         `yaml:"group"`
	Operations  []operationDoc `yaml:"operations"`
}

// operationDoc is the union of every operation's settings; Kind decides
// which fields apply.
type operationDoc struct {
	Kind string `yaml:"kind"`

	// selectors
	XPath      string            `yaml:"xpath"`
	Namespaces map[string]string `yaml:"namespaces"`
	Sources    string            `yaml:"sources"`
	AppID      string            `yaml:"app_id"`

	// transforms
	Body              string `yaml:"body"`
	Properties        string `yaml:"properties"`
	Engine            string `yaml:"engine"`
	DefaultAppContext string `yaml:"default_app_context"`

	// carry forward
	Application     applicationDoc `yaml:"application"`
	ServiceInstance string         `yaml:"service_instance"`
	ComponentGUID   string         `yaml:"component_instance_guid"`
	Node            string         `yaml:"node"`
	Port            portDoc        `yaml:"port"`
}

type applicationDoc struct {
	GUID              string `yaml:"guid"`
	Version           string `yaml:"version"`
	SchemaVersion     string `yaml:"schema_version"`
	DefaultAppContext string `yaml:"default_app_context"`
	DeploymentLabel   string `yaml:"deployment_label"`
}

type portDoc struct {
	Name             string `yaml:"name"`
	Direction        string `yaml:"direction"`
	AppContextAction string `yaml:"app_context_action"`
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("routecfg: %w", err)
	}
	return Parse(b)
}

// Parse decodes a route definition document. Unknown fields are rejected.
func Parse(b []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var doc fileDoc
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("routecfg: %w", err)
	}

	f := &File{Transport: doc.Transport, Codec: doc.Codec}
	for i, rd := range doc.Routes {
		if rd.Name == "" {
			return nil, &xroute.ConfigError{
				Route: fmt.Sprintf("#%d", i),
				Err:   fmt.Errorf("%w: name is required", xroute.ErrInvalidRoute),
			}
		}
		r := xroute.Route{
			Name:        rd.Name,
			Source:      rd.Source,
			Destination: rd.Destination,
			Group:       rd.Group,
		}
		for _, od := range rd.Operations {
			cfg, err := od.config()
			if err != nil {
				return nil, &xroute.ConfigError{Route: rd.Name, Operation: od.Kind, Err: err}
			}
			r.Operations = append(r.Operations, cfg)
		}
		f.Routes = append(f.Routes, r)
	}
	return f, nil
}

// Apply configures rb with the file's transport, codec, and routes. An empty
// transport name leaves the builder's transport untouched.
func (f *File) Apply(rb *xroute.RouterBuilder) *xroute.RouterBuilder {
	if f.Transport.Name != "" {
		rb.WithTransport(f.Transport.Name, f.Transport.Config)
	}
	if f.Codec != "" {
		rb.WithCodec(f.Codec)
	}
	return rb.WithRoute(f.Routes...)
}

func (od operationDoc) config() (xroute.OperationConfig, error) {
	t, err := xroute.ParseOperationType(od.Kind)
	if err != nil {
		return nil, err
	}
	switch t {
	case xroute.MessageCreation:
		return xroute.MessageCreationConfig{}, nil
	case xroute.SenderSelector:
		return xroute.SenderSelectorConfig{SourcePatterns: od.Sources, AppIDPattern: od.AppID}, nil
	case xroute.BodySelector, xroute.ContextSelector:
		return xroute.XMLSelectorConfig{XPath: od.XPath, Namespaces: od.Namespaces, Target: target(t)}, nil
	case xroute.BodyTransform, xroute.ContextTransform:
		return xroute.TransformConfig{
			Target:            target(t),
			BodyProgram:       od.Body,
			PropertyProgram:   od.Properties,
			Engine:            od.Engine,
			DefaultAppContext: od.DefaultAppContext,
		}, nil
	case xroute.CarryForwardContext:
		dir, err := xroute.ParseDirection(od.Port.Direction)
		if err != nil {
			return nil, err
		}
		action, err := xroute.ParseAppContextAction(od.Port.AppContextAction)
		if err != nil {
			return nil, err
		}
		return xroute.CarryForwardConfig{
			Application: xroute.Application{
				GUID:              od.Application.GUID,
				Version:           od.Application.Version,
				SchemaVersion:     od.Application.SchemaVersion,
				DefaultAppContext: od.Application.DefaultAppContext,
				DeploymentLabel:   od.Application.DeploymentLabel,
			},
			ServiceInstanceName:   od.ServiceInstance,
			ComponentInstanceGUID: od.ComponentGUID,
			NodeName:              od.Node,
			Port:                  xroute.Port{Name: od.Port.Name, Direction: dir, AppContextAction: action},
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", xroute.ErrUnknownOperation, t)
}

func target(t xroute.OperationType) xroute.Target {
	if t == xroute.ContextSelector || t == xroute.ContextTransform {
		return xroute.TargetContext
	}
	return xroute.TargetBody
}
