package kube

import (
	"context"
	"fmt"
	"time"

	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/core/kube/kubeutil"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
)

type Client interface {
	GetDeploy(ctx context.Context, name string, opt kconfig.Opt) (*appsv1.Deployment, error)
	WatchDeploy(ctx context.Context, lo metav1.ListOptions, opt kconfig.Opt) (watch.Interface, error)
	WaitTillDeployReady(ctx context.Context, name string, timeout time.Duration, opt kconfig.Opt) error
	CreateDeploy(ctx context.Context, deploy *appsv1.Deployment, opt kconfig.Opt) (*appsv1.Deployment, error)
	UpdateDeploy(ctx context.Context, deploy *appsv1.Deployment, opt kconfig.Opt) (*appsv1.Deployment, error)
	UpsertDeploy(ctx context.Context, deploy *appsv1.Deployment, opt kconfig.Opt) (*appsv1.Deployment, error)
	DeleteDeploy(ctx context.Context, name string, opt kconfig.Opt) error
	ListReplicaSets(ctx context.Context, lo metav1.ListOptions, opt kconfig.Opt) (*appsv1.ReplicaSetList, error)

	GetService(ctx context.Context, name string, opt kconfig.Opt) (*corev1.Service, error)
	UpsertService(ctx context.Context, service *corev1.Service, opt kconfig.Opt) (*corev1.Service, error)
	DeleteService(ctx context.Context, name string, opt kconfig.Opt) error

	GetIngress(ctx context.Context, name string, opt kconfig.Opt) (*networkingv1.Ingress, error)
	ListIngresses(ctx context.Context, lo metav1.ListOptions, opt kconfig.Opt) (*networkingv1.IngressList, error)
	UpsertIngress(ctx context.Context, ingress *networkingv1.Ingress, opt kconfig.Opt) (*networkingv1.Ingress, error)
	DeleteIngress(ctx context.Context, name string, opt kconfig.Opt) error

	GetConfigMap(ctx context.Context, name string, opt kconfig.Opt) (*corev1.ConfigMap, error)
	ListConfigMaps(ctx context.Context, lo metav1.ListOptions, opt kconfig.Opt) (*corev1.ConfigMapList, error)
	UpsertConfigMap(ctx context.Context, cm *corev1.ConfigMap, opt kconfig.Opt) (*corev1.ConfigMap, error)
	DeleteConfigMap(ctx context.Context, name string, opt kconfig.Opt) error

	Api() kubernetes.Interface
	ApiConfig() kconfig.Config
}

type ClientSpec struct {
	Config  kconfig.ConfigSpec
	Context string
}

func NewClient(spec ClientSpec) (Client, error) {
	conf, err := kconfig.NewConfigClient(spec.Config)
	if err != nil {
		return nil, err
	}

	apiClient, err := conf.Api(spec.Context)
	if err != nil {
		return nil, err
	}

	return &client{
		Interface: apiClient,
		Config:    conf,
	}, nil
}

// FromApi wraps an already constructed clientset. Used by tests to back the
// Client with a fake clientset.
func FromApi(inter kubernetes.Interface, namespace string) Client {
	return &client{
		Interface: inter,
		Config:    kconfig.StaticConfig(namespace),
	}
}

type client struct {
	Interface kubernetes.Interface
	Config    kconfig.Config
}

func (c *client) Api() kubernetes.Interface {
	return c.Interface
}

func (c *client) ApiConfig() kconfig.Config {
	return c.Config
}

func (c *client) GetDeploy(ctx context.Context, name string, opt kconfig.Opt) (*appsv1.Deployment, error) {
	return c.Api().AppsV1().Deployments(opt.Namespace).Get(ctx, name, metav1.GetOptions{})
}

func (c *client) WatchDeploy(ctx context.Context, lo metav1.ListOptions, opt kconfig.Opt) (watch.Interface, error) {
	return c.Api().AppsV1().Deployments(opt.Namespace).Watch(ctx, lo)
}

func (c *client) CreateDeploy(ctx context.Context, deploy *appsv1.Deployment, opt kconfig.Opt) (*appsv1.Deployment, error) {
	deploy.ResourceVersion = ""
	return c.Api().AppsV1().Deployments(opt.Namespace).Create(ctx, deploy, metav1.CreateOptions{})
}

func (c *client) UpdateDeploy(ctx context.Context, deploy *appsv1.Deployment, opt kconfig.Opt) (*appsv1.Deployment, error) {
	return c.Api().AppsV1().Deployments(opt.Namespace).Update(ctx, deploy, metav1.UpdateOptions{})
}

func (c *client) UpsertDeploy(ctx context.Context, deploy *appsv1.Deployment, opt kconfig.Opt) (*appsv1.Deployment, error) {
	out, err := c.Api().AppsV1().Deployments(opt.Namespace).Create(ctx, deploy, metav1.CreateOptions{})
	if err != nil {
		if errors.IsAlreadyExists(err) {
			return c.Api().AppsV1().Deployments(opt.Namespace).Update(ctx, deploy, metav1.UpdateOptions{})
		}
		return nil, err
	}
	return out, nil
}

func (c *client) DeleteDeploy(ctx context.Context, name string, opt kconfig.Opt) error {
	return c.Api().AppsV1().Deployments(opt.Namespace).Delete(ctx, name, metav1.DeleteOptions{})
}

func (c *client) ListReplicaSets(ctx context.Context, lo metav1.ListOptions, opt kconfig.Opt) (*appsv1.ReplicaSetList, error) {
	return c.Api().AppsV1().ReplicaSets(opt.Namespace).List(ctx, lo)
}

func (c *client) GetService(ctx context.Context, name string, opt kconfig.Opt) (*corev1.Service, error) {
	return c.Api().CoreV1().Services(opt.Namespace).Get(ctx, name, metav1.GetOptions{})
}

func (c *client) UpsertService(ctx context.Context, service *corev1.Service, opt kconfig.Opt) (*corev1.Service, error) {
	svcApi := c.Api().CoreV1().Services(opt.Namespace)

	out, err := svcApi.Create(ctx, service, metav1.CreateOptions{})
	if errors.IsAlreadyExists(err) {
		existing, getErr := svcApi.Get(ctx, service.Name, metav1.GetOptions{})
		if getErr != nil {
			return nil, getErr
		}
		service.ResourceVersion = existing.ResourceVersion
		service.Spec.ClusterIP = existing.Spec.ClusterIP
		out, err = svcApi.Update(ctx, service, metav1.UpdateOptions{})
	}

	return out, err
}

func (c *client) DeleteService(ctx context.Context, name string, opt kconfig.Opt) error {
	return c.Api().CoreV1().Services(opt.Namespace).Delete(ctx, name, metav1.DeleteOptions{})
}

func (c *client) GetIngress(ctx context.Context, name string, opt kconfig.Opt) (*networkingv1.Ingress, error) {
	return c.Api().NetworkingV1().Ingresses(opt.Namespace).Get(ctx, name, metav1.GetOptions{})
}

func (c *client) ListIngresses(ctx context.Context, lo metav1.ListOptions, opt kconfig.Opt) (*networkingv1.IngressList, error) {
	return c.Api().NetworkingV1().Ingresses(opt.Namespace).List(ctx, lo)
}

func (c *client) UpsertIngress(ctx context.Context, ingress *networkingv1.Ingress, opt kconfig.Opt) (*networkingv1.Ingress, error) {
	ingApi := c.Api().NetworkingV1().Ingresses(opt.Namespace)

	out, err := ingApi.Create(ctx, ingress, metav1.CreateOptions{})
	if errors.IsAlreadyExists(err) {
		existing, getErr := ingApi.Get(ctx, ingress.Name, metav1.GetOptions{})
		if getErr != nil {
			return nil, getErr
		}
		ingress.ResourceVersion = existing.ResourceVersion
		out, err = ingApi.Update(ctx, ingress, metav1.UpdateOptions{})
	}

	return out, err
}

func (c *client) DeleteIngress(ctx context.Context, name string, opt kconfig.Opt) error {
	return c.Api().NetworkingV1().Ingresses(opt.Namespace).Delete(ctx, name, metav1.DeleteOptions{})
}

func (c *client) GetConfigMap(ctx context.Context, name string, opt kconfig.Opt) (*corev1.ConfigMap, error) {
	return c.Api().CoreV1().ConfigMaps(opt.Namespace).Get(ctx, name, metav1.GetOptions{})
}

func (c *client) ListConfigMaps(ctx context.Context, lo metav1.ListOptions, opt kconfig.Opt) (*corev1.ConfigMapList, error) {
	return c.Api().CoreV1().ConfigMaps(opt.Namespace).List(ctx, lo)
}

func (c *client) UpsertConfigMap(ctx context.Context, cm *corev1.ConfigMap, opt kconfig.Opt) (*corev1.ConfigMap, error) {
	cmApi := c.Api().CoreV1().ConfigMaps(opt.Namespace)

	out, err := cmApi.Create(ctx, cm, metav1.CreateOptions{})
	if errors.IsAlreadyExists(err) {
		existing, getErr := cmApi.Get(ctx, cm.Name, metav1.GetOptions{})
		if getErr != nil {
			return nil, getErr
		}
		cm.ResourceVersion = existing.ResourceVersion
		out, err = cmApi.Update(ctx, cm, metav1.UpdateOptions{})
	}

	return out, err
}

func (c *client) DeleteConfigMap(ctx context.Context, name string, opt kconfig.Opt) error {
	return c.Api().CoreV1().ConfigMaps(opt.Namespace).Delete(ctx, name, metav1.DeleteOptions{})
}

func (c *client) WaitTillDeployReady(ctx context.Context, name string, timeout time.Duration, opt kconfig.Opt) error {
	dep, err := c.GetDeploy(ctx, name, opt)
	if err != nil {
		return err
	}

	if kubeutil.DeploymentIsReady(dep) {
		return nil
	}

	wi, err := c.WatchDeploy(ctx, metav1.ListOptions{FieldSelector: fmt.Sprintf("metadata.name=%s", name)}, opt)
	if err != nil {
		return err
	}
	defer wi.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return except.NewError("deploy %s failed to be ready after %s", except.ErrTimeout, name, timeout)
		case r, ok := <-wi.ResultChan():
			if !ok {
				return except.NewError("watch on deploy %s closed before it was ready", except.ErrTransient, name)
			}
			switch r.Type {
			case watch.Error:
				reason := "unknown"
				if r.Object != nil {
					if dep, ok := r.Object.(*appsv1.Deployment); ok {
						if cond := latestDeployCondition(dep); cond != nil {
							reason = cond.Message
						}
					}
				}
				return except.NewError("deploy %s failed: %s", except.ErrInternalError, name, reason)
			case watch.Added, watch.Modified:
				if r.Object != nil {
					if dep, ok := r.Object.(*appsv1.Deployment); ok {
						if kubeutil.DeploymentIsReady(dep) {
							return nil
						}
					}
				}
			}
		}
	}
}

func latestDeployCondition(dep *appsv1.Deployment) *appsv1.DeploymentCondition {
	if len(dep.Status.Conditions) > 0 {
		return &dep.Status.Conditions[len(dep.Status.Conditions)-1]
	}
	return nil
}
