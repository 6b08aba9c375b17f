// Package kubernetes provisions sandboxes through agent-sandbox
// SandboxClaim CRDs. Each provisioned instance is a dedicated pod that is
// deleted again on Close.
package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	sandboxv1alpha1 "sigs.k8s.io/agent-sandbox/api/v1alpha1"
	extensionsv1alpha1 "sigs.k8s.io/agent-sandbox/extensions/api/v1alpha1"

	"github.com/jkoenig/werkbank/pkg/sandbox"
)

var _ sandbox.Service = (*ClaimService)(nil)

// ClaimService provisions sandbox pods by creating SandboxClaim CRDs and
// waiting for the bound Sandbox to become ready.
type ClaimService struct {
	client      client.Client
	template    string
	namespace   string
	urlOverride string
}

// NewClaimService creates a ClaimService. urlOverride replaces the
// claim-derived sandbox URL when non-empty, which is useful when traffic
// must go through an ingress instead of the in-cluster service FQDN.
func NewClaimService(c client.Client, template, namespace, urlOverride string) *ClaimService {
	return &ClaimService{
		client:      c,
		template:    template,
		namespace:   namespace,
		urlOverride: urlOverride,
	}
}

// NewScheme returns a runtime.Scheme with the agent-sandbox types
// registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := sandboxv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register sandbox types: %w", err)
	}
	if err := extensionsv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register extensions types: %w", err)
	}
	return scheme, nil
}

func (s *ClaimService) Name() string {
	return "kubernetes"
}

// Provision creates a SandboxClaim and waits for the Sandbox to become
// ready. The returned instance deletes the claim on Close.
func (s *ClaimService) Provision(ctx context.Context) (sandbox.Instance, error) {
	claimName := generateClaimNameFn()

	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      claimName,
			Namespace: s.namespace,
		},
		Spec: extensionsv1alpha1.SandboxClaimSpec{
			TemplateRef: extensionsv1alpha1.SandboxTemplateRef{
				Name: s.template,
			},
		},
	}

	if err := s.client.Create(ctx, claim); err != nil {
		return nil, fmt.Errorf("create SandboxClaim %q: %w", claimName, err)
	}
	slog.Debug("created SandboxClaim", "name", claimName, "namespace", s.namespace, "template", s.template)

	serviceFQDN, err := s.waitForReady(ctx, claimName)
	if err != nil {
		s.deleteClaim(context.Background(), claimName)
		return nil, err
	}

	url := fmt.Sprintf("http://%s:8080", serviceFQDN)
	if s.urlOverride != "" {
		url = s.urlOverride
	}

	slog.Debug("sandbox acquired", "name", claimName, "url", url)
	return &claimInstance{
		Instance:  sandbox.NewHTTPInstance(url, ""),
		service:   s,
		claimName: claimName,
	}, nil
}

// claimInstance wraps the HTTP instance and deletes the claim on Close.
type claimInstance struct {
	sandbox.Instance
	service   *ClaimService
	claimName string
	closed    bool
}

func (i *claimInstance) Close(ctx context.Context) error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.service.deleteClaim(ctx, i.claimName)
	return i.Instance.Close(ctx)
}

// waitForReady polls the Sandbox resource until its Ready condition is
// True or the context expires.
func (s *ClaimService) waitForReady(ctx context.Context, sandboxName string) (string, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for Sandbox %q: %w", sandboxName, ctx.Err())
		case <-ticker.C:
			sb := &sandboxv1alpha1.Sandbox{}
			key := types.NamespacedName{Name: sandboxName, Namespace: s.namespace}
			if err := s.client.Get(ctx, key, sb); err != nil {
				// The controller may not have created it yet. Keep polling.
				slog.Debug("waiting for Sandbox", "name", sandboxName, "error", err.Error())
				continue
			}

			if isReady(sb) {
				if sb.Status.ServiceFQDN == "" {
					continue // Ready but FQDN not yet populated.
				}
				return sb.Status.ServiceFQDN, nil
			}
		}
	}
}

func isReady(sb *sandboxv1alpha1.Sandbox) bool {
	for _, c := range sb.Status.Conditions {
		if c.Type == string(sandboxv1alpha1.SandboxConditionReady) && c.Status == metav1.ConditionTrue {
			return true
		}
	}
	return false
}

// deleteClaim deletes a SandboxClaim. Errors are logged, not returned:
// this runs on cleanup paths only.
func (s *ClaimService) deleteClaim(ctx context.Context, name string) {
	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: s.namespace,
		},
	}
	if err := s.client.Delete(ctx, claim); err != nil {
		slog.Warn("failed to delete SandboxClaim", "name", name, "namespace", s.namespace, "error", err.Error())
		return
	}
	slog.Debug("deleted SandboxClaim", "name", name, "namespace", s.namespace)
}

// generateClaimNameFn creates a unique SandboxClaim name. Replaceable in
// tests for deterministic naming.
var generateClaimNameFn = func() string {
	return fmt.Sprintf("werkbank-exec-%d", time.Now().UnixNano())
}
