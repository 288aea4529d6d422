// Package bundle analyzes and cleans API proxy bundles.
//
// A bundle is an extracted apiproxy directory:
//
//	apiproxy/
//	  <manifest>.xml        root manifests listing policies and resources
//	  policies/*.xml        one document per policy
//	  proxies/*.xml         proxy endpoints
//	  targets/*.xml         target endpoints
//	  resources/<type>/*    resource files linked from policies
package bundle

import "strings"

// Directory names inside a bundle.
const (
	PoliciesDir  = "policies"
	ProxiesDir   = "proxies"
	TargetsDir   = "targets"
	ResourcesDir = "resources"
)

// Element names used by endpoint and manifest documents.
const (
	tagStep      = "Step"
	tagName      = "Name"
	tagCondition = "Condition"
	tagRequest   = "Request"
	tagResponse  = "Response"
	tagPreFlow   = "PreFlow"
	tagPostFlow  = "PostFlow"
	tagFlow      = "Flow"

	tagResourceURL = "ResourceURL"

	tagPolicies  = "Policies"
	tagPolicy    = "Policy"
	tagResources = "Resources"
	tagResource  = "Resource"
)

const xmlExt = ".xml"

// Default kinds and resource types.
var (
	DefaultScriptKind    = "javascript"
	DefaultResourceKinds = []string{"javascript", "javacallout"}
	DefaultResourceTypes = []string{"jsc", "java", "py", "xsl", "wsdl", "properties"}
)

// Options tunes which policy kinds are treated specially.
type Options struct {
	// ScriptKind is the lowercased root tag of policies considered for sequence detection.
	ScriptKind string

	// ResourceKinds are the lowercased root tags of policies whose ResourceURL is honoured.
	ResourceKinds []string

	// ResourceTypes are the resources/ subdirectories listed in manifests.
	ResourceTypes []string
}

// DefaultOptions returns the options matching the standard proxy layout.
func DefaultOptions() Options {
	return Options{
		ScriptKind:    DefaultScriptKind,
		ResourceKinds: append([]string(nil), DefaultResourceKinds...),
		ResourceTypes: append([]string(nil), DefaultResourceTypes...),
	}
}

func (o Options) withDefaults() Options {
	if o.ScriptKind == "" {
		o.ScriptKind = DefaultScriptKind
	}
	if len(o.ResourceKinds) == 0 {
		o.ResourceKinds = DefaultResourceKinds
	}
	if len(o.ResourceTypes) == 0 {
		o.ResourceTypes = DefaultResourceTypes
	}
	o.ScriptKind = strings.ToLower(o.ScriptKind)
	return o
}

func (o Options) isResourceKind(kind string) bool {
	for _, k := range o.ResourceKinds {
		if strings.EqualFold(k, kind) {
			return true
		}
	}
	return false
}
