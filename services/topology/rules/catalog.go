// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"

	"k8s.io/apimachinery/pkg/labels"

	"github.com/AleutianAI/AleutianAtlas/services/topology/model"
)

// Confidence levels used across the catalog.
const (
	// ConfidenceExplicit marks structurally certain references.
	ConfidenceExplicit = 1.0

	// ConfidenceSelector marks label-selector inference.
	ConfidenceSelector = 0.9

	// ConfidenceProvenance marks external-management marker inference.
	ConfidenceProvenance = 0.8

	// ConfidenceAmbiguous marks matches where namespace scoping was
	// expected but the match spans several namespaces. Recall beats
	// precision: the edge survives with reduced confidence.
	ConfidenceAmbiguous = 0.6
)

// Catalog returns the fixed, ordered rule list: one rule per relationship
// type. The order only affects warning aggregation order, never the edge
// set.
func Catalog() []Rule {
	return []Rule{
		ownsRule{},
		selectsRule{},
		mountsRule{},
		storesRule{},
		referencesRule{},
		schedulesRule{},
		configuresRule{},
		permitsRule{},
		webhookRule{kind: "ValidatingWebhookConfiguration", relType: model.RelValidates, name: "validating-webhook"},
		webhookRule{kind: "MutatingWebhookConfiguration", relType: model.RelMutates, name: "mutating-webhook"},
		exposesRule{},
		routesRule{},
		limitsRule{},
		managesRule{},
		containsRule{},
	}
}

// ─── owns ────────────────────────────────────────────────────────────────

// ownsRule turns explicit owner references into owns edges, pointing from
// controller to dependent. A reference whose owner is not in the record
// set produces an orphan warning, never an invented node.
type ownsRule struct{}

func (ownsRule) Name() string                 { return "owner-reference" }
func (ownsRule) Type() model.RelationshipType { return model.RelOwns }

func (r ownsRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if len(rec.OwnerReferences) == 0 {
		return nil, nil
	}
	var cands []Candidate
	var warns []model.Warning
	for _, ref := range rec.OwnerReferences {
		owner, ok := idx.GetByUID(ref.UID)
		if !ok {
			// Owner references are namespace-local.
			owner, ok = idx.Find(ref.Kind, rec.Namespace, ref.Name)
		}
		if !ok {
			warns = append(warns, model.Warning{
				Code:          model.WarnOrphanedResource,
				Message:       fmt.Sprintf("%s references missing owner %s/%s", rec.Identity.ID(), ref.Kind, ref.Name),
				AffectedNodes: []string{rec.Identity.ID()},
			})
			continue
		}
		cands = append(cands, Candidate{
			Source:      owner.Identity.ID(),
			Target:      rec.Identity.ID(),
			Type:        model.RelOwns,
			Confidence:  ConfidenceExplicit,
			SourceField: "metadata.ownerReferences",
		})
	}
	return cands, warns
}

// ─── selects ─────────────────────────────────────────────────────────────

// selectsRule matches label selectors on traffic-routing and policy
// objects against workload instances.
type selectsRule struct{}

func (selectsRule) Name() string                 { return "label-selector" }
func (selectsRule) Type() model.RelationshipType { return model.RelSelects }

func (r selectsRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	var field string
	switch rec.Kind {
	case "Service":
		field = "selector"
	case "NetworkPolicy":
		field = "podSelector"
	default:
		return nil, nil
	}
	if rec.Spec == nil {
		return nil, nil
	}

	raw, present := rec.Spec[field]
	if !present {
		return nil, nil
	}
	// NetworkPolicy nests matchLabels one level down.
	if m, ok := raw.(map[string]any); ok {
		if inner, ok2 := m["matchLabels"]; ok2 {
			raw = inner
		}
	}
	sel, err := selectorFrom(raw)
	if err != nil {
		return nil, []model.Warning{skipWarning(r.Name(), rec.Identity.ID(), "spec."+field, err)}
	}
	if sel == nil || sel.Empty() {
		return nil, nil
	}

	var cands []Candidate
	namespaces := map[string]bool{}
	for _, pod := range idx.ByKind("Pod") {
		if rec.Namespace != "" && pod.Namespace != rec.Namespace {
			continue
		}
		if !sel.Matches(labels.Set(pod.Labels)) {
			continue
		}
		namespaces[pod.Namespace] = true
		cands = append(cands, Candidate{
			Source:      rec.Identity.ID(),
			Target:      pod.Identity.ID(),
			Type:        model.RelSelects,
			Confidence:  ConfidenceSelector,
			SourceField: "spec." + field,
		})
	}

	var warns []model.Warning
	if rec.Namespace == "" && len(namespaces) > 1 {
		// Namespace scoping was expected; the match spans several.
		affected := []string{rec.Identity.ID()}
		for i := range cands {
			cands[i].Confidence = ConfidenceAmbiguous
			affected = append(affected, cands[i].Target)
		}
		warns = append(warns, model.Warning{
			Code:          model.WarnAmbiguousSelector,
			Message:       fmt.Sprintf("%s selector matches workloads in %d namespaces", rec.Identity.ID(), len(namespaces)),
			AffectedNodes: affected,
		})
	}
	return cands, warns
}

// ─── mounts ──────────────────────────────────────────────────────────────

// mountsRule links pods to the configuration objects their volumes mount.
type mountsRule struct{}

func (mountsRule) Name() string                 { return "volume-mount" }
func (mountsRule) Type() model.RelationshipType { return model.RelMounts }

func (r mountsRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Kind != "Pod" || rec.Spec == nil {
		return nil, nil
	}
	volumes, ok, err := getSlice(rec.Spec, "volumes")
	if err != nil {
		return nil, []model.Warning{skipWarning(r.Name(), rec.Identity.ID(), "spec.volumes", err)}
	}
	if !ok {
		return nil, nil
	}

	var cands []Candidate
	var warns []model.Warning
	for i, v := range volumes {
		vol, ok := v.(map[string]any)
		if !ok {
			warns = append(warns, skipWarning(r.Name(), rec.Identity.ID(),
				fmt.Sprintf("spec.volumes[%d]", i), errWrongShape))
			continue
		}
		if cm, ok, _ := getMap(vol, "configMap"); ok {
			if name, _, _ := getString(cm, "name"); name != "" {
				if target, found := idx.Find("ConfigMap", rec.Namespace, name); found {
					cands = append(cands, Candidate{
						Source:      rec.Identity.ID(),
						Target:      target.Identity.ID(),
						Type:        model.RelMounts,
						Confidence:  ConfidenceExplicit,
						SourceField: fmt.Sprintf("spec.volumes[%d].configMap", i),
					})
				}
			}
		}
		if sec, ok, _ := getMap(vol, "secret"); ok {
			if name, _, _ := getString(sec, "secretName"); name != "" {
				if target, found := idx.Find("Secret", rec.Namespace, name); found {
					cands = append(cands, Candidate{
						Source:      rec.Identity.ID(),
						Target:      target.Identity.ID(),
						Type:        model.RelMounts,
						Confidence:  ConfidenceExplicit,
						SourceField: fmt.Sprintf("spec.volumes[%d].secret", i),
					})
				}
			}
		}
	}
	return cands, warns
}

// ─── stores ──────────────────────────────────────────────────────────────

// storesRule links workloads to their claims and claims to their bound
// volumes.
type storesRule struct{}

func (storesRule) Name() string                 { return "storage-binding" }
func (storesRule) Type() model.RelationshipType { return model.RelStores }

func (r storesRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	switch rec.Kind {
	case "Pod":
		return r.inferPodClaims(rec, idx)
	case "PersistentVolumeClaim":
		return r.inferClaimBinding(rec, idx)
	default:
		return nil, nil
	}
}

func (r storesRule) inferPodClaims(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Spec == nil {
		return nil, nil
	}
	volumes, ok, err := getSlice(rec.Spec, "volumes")
	if err != nil {
		return nil, []model.Warning{skipWarning(r.Name(), rec.Identity.ID(), "spec.volumes", err)}
	}
	if !ok {
		return nil, nil
	}
	var cands []Candidate
	for i, v := range volumes {
		vol, ok := v.(map[string]any)
		if !ok {
			continue // mountsRule already warned about this volume
		}
		pvc, ok, _ := getMap(vol, "persistentVolumeClaim")
		if !ok {
			continue
		}
		name, _, _ := getString(pvc, "claimName")
		if name == "" {
			continue
		}
		if target, found := idx.Find("PersistentVolumeClaim", rec.Namespace, name); found {
			cands = append(cands, Candidate{
				Source:      rec.Identity.ID(),
				Target:      target.Identity.ID(),
				Type:        model.RelStores,
				Confidence:  ConfidenceExplicit,
				SourceField: fmt.Sprintf("spec.volumes[%d].persistentVolumeClaim", i),
			})
		}
	}
	return cands, nil
}

func (r storesRule) inferClaimBinding(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Spec == nil {
		return nil, nil
	}
	volumeName, _, err := getString(rec.Spec, "volumeName")
	if err != nil {
		return nil, []model.Warning{skipWarning(r.Name(), rec.Identity.ID(), "spec.volumeName", err)}
	}
	if volumeName == "" {
		return nil, nil
	}
	target, found := idx.Find("PersistentVolume", "", volumeName)
	if !found {
		return nil, nil
	}
	return []Candidate{{
		Source:      rec.Identity.ID(),
		Target:      target.Identity.ID(),
		Type:        model.RelStores,
		Confidence:  ConfidenceExplicit,
		SourceField: "spec.volumeName",
	}}, nil
}

// ─── references ──────────────────────────────────────────────────────────

// referencesRule covers generic cross-object field references: storage
// class names, scale target refs, pod service accounts.
type referencesRule struct{}

func (referencesRule) Name() string                 { return "field-reference" }
func (referencesRule) Type() model.RelationshipType { return model.RelReferences }

func (r referencesRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Spec == nil {
		return nil, nil
	}
	var cands []Candidate
	var warns []model.Warning

	switch rec.Kind {
	case "PersistentVolumeClaim":
		name, _, err := getString(rec.Spec, "storageClassName")
		if err != nil {
			return nil, []model.Warning{skipWarning(r.Name(), rec.Identity.ID(), "spec.storageClassName", err)}
		}
		if target, found := idx.Find("StorageClass", "", name); name != "" && found {
			cands = append(cands, Candidate{
				Source:      rec.Identity.ID(),
				Target:      target.Identity.ID(),
				Type:        model.RelReferences,
				Confidence:  ConfidenceExplicit,
				SourceField: "spec.storageClassName",
			})
		}

	case "HorizontalPodAutoscaler":
		ref, ok, err := getMap(rec.Spec, "scaleTargetRef")
		if err != nil {
			return nil, []model.Warning{skipWarning(r.Name(), rec.Identity.ID(), "spec.scaleTargetRef", err)}
		}
		if !ok {
			return nil, nil
		}
		kind, _, _ := getString(ref, "kind")
		name, _, _ := getString(ref, "name")
		if kind == "" || name == "" {
			warns = append(warns, skipWarning(r.Name(), rec.Identity.ID(), "spec.scaleTargetRef", errWrongShape))
			break
		}
		if target, found := idx.Find(kind, rec.Namespace, name); found {
			cands = append(cands, Candidate{
				Source:      rec.Identity.ID(),
				Target:      target.Identity.ID(),
				Type:        model.RelReferences,
				Confidence:  ConfidenceExplicit,
				SourceField: "spec.scaleTargetRef",
			})
		}

	case "Pod":
		name, _, _ := getString(rec.Spec, "serviceAccountName")
		if target, found := idx.Find("ServiceAccount", rec.Namespace, name); name != "" && found {
			cands = append(cands, Candidate{
				Source:      rec.Identity.ID(),
				Target:      target.Identity.ID(),
				Type:        model.RelReferences,
				Confidence:  ConfidenceExplicit,
				SourceField: "spec.serviceAccountName",
			})
		}
	}
	return cands, warns
}

// ─── schedules ───────────────────────────────────────────────────────────

// schedulesRule links placement targets to the workloads placed on them.
// Direction is node to pod: the node hosts, the pod is hosted.
type schedulesRule struct{}

func (schedulesRule) Name() string                 { return "placement" }
func (schedulesRule) Type() model.RelationshipType { return model.RelSchedules }

func (r schedulesRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Kind != "Pod" || rec.Spec == nil {
		return nil, nil
	}
	nodeName, _, err := getString(rec.Spec, "nodeName")
	if err != nil {
		return nil, []model.Warning{skipWarning(r.Name(), rec.Identity.ID(), "spec.nodeName", err)}
	}
	if nodeName == "" {
		return nil, nil
	}
	node, found := idx.Find("Node", "", nodeName)
	if !found {
		return nil, nil
	}
	return []Candidate{{
		Source:      node.Identity.ID(),
		Target:      rec.Identity.ID(),
		Type:        model.RelSchedules,
		Confidence:  ConfidenceExplicit,
		SourceField: "spec.nodeName",
	}}, nil
}

// ─── configures ──────────────────────────────────────────────────────────

// configuresRule links injected configuration objects to the workloads
// that consume them through environment variables. Direction is config
// object to workload.
type configuresRule struct{}

func (configuresRule) Name() string                 { return "env-injection" }
func (configuresRule) Type() model.RelationshipType { return model.RelConfigures }

func (r configuresRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Kind != "Pod" || rec.Spec == nil {
		return nil, nil
	}
	containers, ok, err := getSlice(rec.Spec, "containers")
	if err != nil {
		return nil, []model.Warning{skipWarning(r.Name(), rec.Identity.ID(), "spec.containers", err)}
	}
	if !ok {
		return nil, nil
	}

	var cands []Candidate
	emit := func(kind, name, field string) {
		if name == "" {
			return
		}
		if source, found := idx.Find(kind, rec.Namespace, name); found {
			cands = append(cands, Candidate{
				Source:      source.Identity.ID(),
				Target:      rec.Identity.ID(),
				Type:        model.RelConfigures,
				Confidence:  ConfidenceExplicit,
				SourceField: field,
			})
		}
	}

	for i, c := range containers {
		container, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if envFrom, ok, _ := getSlice(container, "envFrom"); ok {
			for _, e := range envFrom {
				entry, ok := e.(map[string]any)
				if !ok {
					continue
				}
				if ref, ok, _ := getMap(entry, "configMapRef"); ok {
					name, _, _ := getString(ref, "name")
					emit("ConfigMap", name, fmt.Sprintf("spec.containers[%d].envFrom", i))
				}
				if ref, ok, _ := getMap(entry, "secretRef"); ok {
					name, _, _ := getString(ref, "name")
					emit("Secret", name, fmt.Sprintf("spec.containers[%d].envFrom", i))
				}
			}
		}
		if env, ok, _ := getSlice(container, "env"); ok {
			for _, e := range env {
				entry, ok := e.(map[string]any)
				if !ok {
					continue
				}
				valueFrom, ok, _ := getMap(entry, "valueFrom")
				if !ok {
					continue
				}
				if ref, ok, _ := getMap(valueFrom, "configMapKeyRef"); ok {
					name, _, _ := getString(ref, "name")
					emit("ConfigMap", name, fmt.Sprintf("spec.containers[%d].env", i))
				}
				if ref, ok, _ := getMap(valueFrom, "secretKeyRef"); ok {
					name, _, _ := getString(ref, "name")
					emit("Secret", name, fmt.Sprintf("spec.containers[%d].env", i))
				}
			}
		}
	}
	return cands, nil
}

// ─── permits ─────────────────────────────────────────────────────────────

// permitsRule links access-control bindings to the roles they grant and
// the subjects they bind.
type permitsRule struct{}

func (permitsRule) Name() string                 { return "rbac-binding" }
func (permitsRule) Type() model.RelationshipType { return model.RelPermits }

func (r permitsRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Kind != "RoleBinding" && rec.Kind != "ClusterRoleBinding" {
		return nil, nil
	}
	if rec.Spec == nil {
		return nil, nil
	}

	var cands []Candidate
	var warns []model.Warning

	roleRef, ok, err := getMap(rec.Spec, "roleRef")
	if err != nil {
		warns = append(warns, skipWarning(r.Name(), rec.Identity.ID(), "roleRef", err))
	} else if ok {
		kind, _, _ := getString(roleRef, "kind")
		name, _, _ := getString(roleRef, "name")
		roleNamespace := rec.Namespace
		if kind == "ClusterRole" {
			roleNamespace = ""
		}
		if target, found := idx.Find(kind, roleNamespace, name); found {
			cands = append(cands, Candidate{
				Source:      rec.Identity.ID(),
				Target:      target.Identity.ID(),
				Type:        model.RelPermits,
				Confidence:  ConfidenceExplicit,
				SourceField: "roleRef",
			})
		}
	}

	subjects, ok, err := getSlice(rec.Spec, "subjects")
	if err != nil {
		warns = append(warns, skipWarning(r.Name(), rec.Identity.ID(), "subjects", err))
		return cands, warns
	}
	if !ok {
		return cands, warns
	}
	for _, s := range subjects {
		subject, ok := s.(map[string]any)
		if !ok {
			continue
		}
		kind, _, _ := getString(subject, "kind")
		if kind != "ServiceAccount" {
			continue
		}
		name, _, _ := getString(subject, "name")
		namespace, _, _ := getString(subject, "namespace")
		if namespace == "" {
			namespace = rec.Namespace
		}
		if target, found := idx.Find("ServiceAccount", namespace, name); found {
			cands = append(cands, Candidate{
				Source:      rec.Identity.ID(),
				Target:      target.Identity.ID(),
				Type:        model.RelPermits,
				Confidence:  ConfidenceExplicit,
				SourceField: "subjects",
			})
		}
	}
	return cands, warns
}

// ─── validates / mutates ─────────────────────────────────────────────────

// webhookRule links admission webhook configurations to the services that
// back them. One instance each for validating and mutating hooks.
type webhookRule struct {
	kind    string
	relType model.RelationshipType
	name    string
}

func (r webhookRule) Name() string                 { return r.name }
func (r webhookRule) Type() model.RelationshipType { return r.relType }

func (r webhookRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Kind != r.kind || rec.Spec == nil {
		return nil, nil
	}
	hooks, ok, err := getSlice(rec.Spec, "webhooks")
	if err != nil {
		return nil, []model.Warning{skipWarning(r.Name(), rec.Identity.ID(), "webhooks", err)}
	}
	if !ok {
		return nil, nil
	}
	var cands []Candidate
	for i, h := range hooks {
		hook, ok := h.(map[string]any)
		if !ok {
			continue
		}
		clientConfig, ok, _ := getMap(hook, "clientConfig")
		if !ok {
			continue
		}
		svc, ok, _ := getMap(clientConfig, "service")
		if !ok {
			continue
		}
		name, _, _ := getString(svc, "name")
		namespace, _, _ := getString(svc, "namespace")
		if target, found := idx.Find("Service", namespace, name); found {
			cands = append(cands, Candidate{
				Source:      rec.Identity.ID(),
				Target:      target.Identity.ID(),
				Type:        r.relType,
				Confidence:  ConfidenceExplicit,
				SourceField: fmt.Sprintf("webhooks[%d].clientConfig.service", i),
			})
		}
	}
	return cands, nil
}

// ─── exposes ─────────────────────────────────────────────────────────────

// exposesRule links services to their endpoints objects by shared name.
type exposesRule struct{}

func (exposesRule) Name() string                 { return "endpoint-exposure" }
func (exposesRule) Type() model.RelationshipType { return model.RelExposes }

func (r exposesRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Kind != "Service" {
		return nil, nil
	}
	target, found := idx.Find("Endpoints", rec.Namespace, rec.Name)
	if !found {
		return nil, nil
	}
	return []Candidate{{
		Source:      rec.Identity.ID(),
		Target:      target.Identity.ID(),
		Type:        model.RelExposes,
		Confidence:  ConfidenceExplicit,
		SourceField: "metadata.name",
	}}, nil
}

// ─── routes ──────────────────────────────────────────────────────────────

// routesRule links ingress objects to their backend services.
type routesRule struct{}

func (routesRule) Name() string                 { return "ingress-backend" }
func (routesRule) Type() model.RelationshipType { return model.RelRoutes }

func (r routesRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Kind != "Ingress" || rec.Spec == nil {
		return nil, nil
	}
	ingressRules, ok, err := getSlice(rec.Spec, "rules")
	if err != nil {
		return nil, []model.Warning{skipWarning(r.Name(), rec.Identity.ID(), "spec.rules", err)}
	}
	if !ok {
		return nil, nil
	}
	var cands []Candidate
	for i, ir := range ingressRules {
		ruleDoc, ok := ir.(map[string]any)
		if !ok {
			continue
		}
		httpDoc, ok, _ := getMap(ruleDoc, "http")
		if !ok {
			continue
		}
		paths, ok, _ := getSlice(httpDoc, "paths")
		if !ok {
			continue
		}
		for _, p := range paths {
			pathDoc, ok := p.(map[string]any)
			if !ok {
				continue
			}
			backend, ok, _ := getMap(pathDoc, "backend")
			if !ok {
				continue
			}
			svc, ok, _ := getMap(backend, "service")
			if !ok {
				continue
			}
			name, _, _ := getString(svc, "name")
			if target, found := idx.Find("Service", rec.Namespace, name); name != "" && found {
				cands = append(cands, Candidate{
					Source:      rec.Identity.ID(),
					Target:      target.Identity.ID(),
					Type:        model.RelRoutes,
					Confidence:  ConfidenceExplicit,
					SourceField: fmt.Sprintf("spec.rules[%d].http.paths", i),
				})
			}
		}
	}
	return cands, nil
}

// ─── limits ──────────────────────────────────────────────────────────────

// limitsRule scopes quota objects to the namespace they constrain.
type limitsRule struct{}

func (limitsRule) Name() string                 { return "quota-scope" }
func (limitsRule) Type() model.RelationshipType { return model.RelLimits }

func (r limitsRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Kind != "ResourceQuota" && rec.Kind != "LimitRange" {
		return nil, nil
	}
	if rec.Namespace == "" {
		return nil, nil
	}
	target, found := idx.Find("Namespace", "", rec.Namespace)
	if !found {
		return nil, nil
	}
	return []Candidate{{
		Source:      rec.Identity.ID(),
		Target:      target.Identity.ID(),
		Type:        model.RelLimits,
		Confidence:  ConfidenceExplicit,
		SourceField: "metadata.namespace",
	}}, nil
}

// ─── manages ─────────────────────────────────────────────────────────────

// managedByLabel and instanceLabel are the templating/GitOps provenance
// markers the manages rule keys on.
const (
	managedByLabel = "app.kubernetes.io/managed-by"
	instanceLabel  = "app.kubernetes.io/instance"
)

// managerKinds are the kinds that can appear as external managers.
var managerKinds = []string{"Application", "HelmRelease"}

// managesRule links externally-managed resources back to the manager
// object named by their provenance labels. Heuristic: the instance label
// carries a release name, not a typed reference.
type managesRule struct{}

func (managesRule) Name() string                 { return "provenance-label" }
func (managesRule) Type() model.RelationshipType { return model.RelManages }

func (r managesRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Labels[managedByLabel] == "" {
		return nil, nil
	}
	instance := rec.Labels[instanceLabel]
	if instance == "" {
		return nil, nil
	}
	// Don't relate a manager object to itself.
	for _, kind := range managerKinds {
		if rec.Kind == kind {
			return nil, nil
		}
	}

	var matches []model.ResourceRecord
	for _, kind := range managerKinds {
		for _, mgr := range idx.ByKind(kind) {
			if mgr.Name != instance {
				continue
			}
			if mgr.Namespace == "" || mgr.Namespace == rec.Namespace {
				matches = append(matches, mgr)
			}
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	confidence := ConfidenceProvenance
	var warns []model.Warning
	if len(matches) > 1 {
		confidence = ConfidenceAmbiguous
		warns = append(warns, model.Warning{
			Code:          model.WarnAmbiguousSelector,
			Message:       fmt.Sprintf("%s provenance label %q matches %d manager objects", rec.Identity.ID(), instance, len(matches)),
			AffectedNodes: []string{rec.Identity.ID()},
		})
	}
	var cands []Candidate
	for _, mgr := range matches {
		cands = append(cands, Candidate{
			Source:      mgr.Identity.ID(),
			Target:      rec.Identity.ID(),
			Type:        model.RelManages,
			Confidence:  confidence,
			SourceField: "metadata.labels[" + instanceLabel + "]",
		})
	}
	return cands, warns
}

// ─── contains ────────────────────────────────────────────────────────────

// containsRule links namespace nodes to their members. Self-referential:
// it needs only the record plus a namespace lookup.
type containsRule struct{}

func (containsRule) Name() string                 { return "namespace-membership" }
func (containsRule) Type() model.RelationshipType { return model.RelContains }

func (r containsRule) Infer(rec model.ResourceRecord, idx *Index) ([]Candidate, []model.Warning) {
	if rec.Namespace == "" || rec.Kind == "Namespace" {
		return nil, nil
	}
	ns, found := idx.Find("Namespace", "", rec.Namespace)
	if !found {
		return nil, nil
	}
	return []Candidate{{
		Source:      ns.Identity.ID(),
		Target:      rec.Identity.ID(),
		Type:        model.RelContains,
		Confidence:  ConfidenceExplicit,
		SourceField: "metadata.namespace",
	}}, nil
}
