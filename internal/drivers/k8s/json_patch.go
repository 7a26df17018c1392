// Package k8s implements the kubernetes-json-patch Scaling Driver
// Registry driver: a generic JSONPatch applied to any namespaced or
// cluster-scoped resource via client-go's dynamic client.
package k8s

import (
	"context"
	"encoding/json"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// JSONPatch drives the kubernetes-json-patch kind: namespace, name,
// api_version and resource (the plural resource name) come from metadata
// (the binding); json_patch is supplied per-call in params as the scaling
// target. A kind is not read and is not mapped to a resource.
type JSONPatch struct {
	id        string
	namespace string
	name      string
	gvr       schema.GroupVersionResource
	client    dynamic.Interface
}

// NewJSONPatch builds the driver. metadata.api_version is "group/version"
// (or just "version" for the core group); metadata.resource is the plural
// resource name (e.g. "deployments").
func NewJSONPatch(id string, metadata map[string]any) (*JSONPatch, error) {
	namespace, _ := paramutil.String(metadata, "namespace")
	name, err := paramutil.RequireString(metadata, "name")
	if err != nil {
		return nil, models.NewConfigError("kubernetes-json-patch metadata", err)
	}
	apiVersion, err := paramutil.RequireString(metadata, "api_version")
	if err != nil {
		return nil, models.NewConfigError("kubernetes-json-patch metadata", err)
	}
	resource, err := paramutil.RequireString(metadata, "resource")
	if err != nil {
		return nil, models.NewConfigError("kubernetes-json-patch metadata", err)
	}
	gv, err := schema.ParseGroupVersion(apiVersion)
	if err != nil {
		return nil, models.NewConfigError("kubernetes-json-patch metadata", fmt.Errorf("parse api_version: %w", err))
	}

	cfg, err := restConfig(metadata)
	if err != nil {
		return nil, models.NewConfigError("kubernetes-json-patch credentials", err)
	}
	client, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, models.NewConfigError("kubernetes-json-patch client", err)
	}

	return &JSONPatch{
		id: id, namespace: namespace, name: name,
		gvr:    gv.WithResource(resource),
		client: client,
	}, nil
}

func (d *JSONPatch) Kind() string { return "kubernetes-json-patch" }
func (d *JSONPatch) ID() string   { return d.id }

func (d *JSONPatch) Apply(ctx context.Context, params map[string]any) error {
	raw, ok := params["json_patch"]
	if !ok {
		return models.NewConfigError("kubernetes-json-patch params", fmt.Errorf("json_patch is required"))
	}
	patch, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("kubernetes-json-patch: marshal patch: %w", err)
	}

	var resourceClient dynamic.ResourceInterface = d.client.Resource(d.gvr)
	if d.namespace != "" {
		resourceClient = d.client.Resource(d.gvr).Namespace(d.namespace)
	}

	_, err = resourceClient.Patch(ctx, d.name, types.JSONPatchType, patch, metav1.PatchOptions{})
	return classifyError(err)
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if apierrors.IsNotFound(err) {
		return models.NewPermanentError("kubernetes-json-patch", err)
	}
	if apierrors.IsTooManyRequests(err) || apierrors.IsServerTimeout(err) || apierrors.IsServiceUnavailable(err) {
		return models.NewTransientError("kubernetes-json-patch", err)
	}
	return models.NewPermanentError("kubernetes-json-patch", err)
}

func restConfig(metadata map[string]any) (*rest.Config, error) {
	if kubeconfig, ok := paramutil.String(metadata, "kubeconfig_path"); ok && kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	return rest.InClusterConfig()
}
