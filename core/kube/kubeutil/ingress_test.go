package kubeutil

import (
	"testing"

	"github.com/stretchr/testify/suite"
	networkingv1 "k8s.io/api/networking/v1"
)

type IngressUtilTestSuite struct {
	suite.Suite
}

func (i *IngressUtilTestSuite) ingressWithRule(serviceName string) *networkingv1.Ingress {
	return &networkingv1.Ingress{
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{
				{
					Host: "echo.example.com",
					IngressRuleValue: networkingv1.IngressRuleValue{
						HTTP: &networkingv1.HTTPIngressRuleValue{
							Paths: []networkingv1.HTTPIngressPath{
								{
									Path: "/",
									Backend: networkingv1.IngressBackend{
										Service: &networkingv1.IngressServiceBackend{
											Name: serviceName,
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

func (i *IngressUtilTestSuite) TestMatchesRuleBackend() {
	// -- Given
	//
	ing := i.ingressWithRule("echo-server")

	// -- Then
	//
	i.True(IngressReferencesService(ing, "echo-server"))
	i.False(IngressReferencesService(ing, "other"))
}

func (i *IngressUtilTestSuite) TestMatchesDefaultBackend() {
	// -- Given
	//
	ing := &networkingv1.Ingress{
		Spec: networkingv1.IngressSpec{
			DefaultBackend: &networkingv1.IngressBackend{
				Service: &networkingv1.IngressServiceBackend{
					Name: "echo-server",
				},
			},
		},
	}

	// -- Then
	//
	i.True(IngressReferencesService(ing, "echo-server"))
}

func (i *IngressUtilTestSuite) TestIgnoresRuleWithoutHttp() {
	// -- Given
	//
	ing := &networkingv1.Ingress{
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{
				{Host: "echo.example.com"},
			},
		},
	}

	// -- Then
	//
	i.False(IngressReferencesService(ing, "echo-server"))
}

func TestIngressUtilTestSuite(t *testing.T) {
	suite.Run(t, new(IngressUtilTestSuite))
}
