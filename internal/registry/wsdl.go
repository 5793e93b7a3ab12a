package registry

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	nsWSDL   = "http://schemas.xmlsoap.org/wsdl/"
	nsSOAP11 = "http://schemas.xmlsoap.org/wsdl/soap/"
	nsSOAP12 = "http://schemas.xmlsoap.org/wsdl/soap12/"
)

type wsdlDefinitions struct {
	XMLName         xml.Name       `xml:"definitions"`
	TargetNamespace string         `xml:"targetNamespace,attr"`
	PortTypes       []wsdlPortType `xml:"portType"`
	Bindings        []wsdlBinding  `xml:"binding"`
	Services        []wsdlService  `xml:"service"`
}

type wsdlPortType struct {
	Name       string          `xml:"name,attr"`
	Operations []wsdlOperation `xml:"operation"`
}

type wsdlOperation struct {
	Name string `xml:"name,attr"`
}

type wsdlBinding struct {
	Name       string                 `xml:"name,attr"`
	Type       string                 `xml:"type,attr"`
	Operations []wsdlBindingOperation `xml:"operation"`
}

type wsdlBindingOperation struct {
	Name        string           `xml:"name,attr"`
	SOAPActions []wsdlSOAPAction `xml:"operation"`
}

type wsdlSOAPAction struct {
	XMLName xml.Name
	Action  string `xml:"soapAction,attr"`
}

type wsdlService struct {
	Name  string     `xml:"name,attr"`
	Ports []wsdlPort `xml:"port"`
}

type wsdlPort struct {
	Name      string        `xml:"name,attr"`
	Binding   string        `xml:"binding,attr"`
	Addresses []wsdlAddress `xml:"address"`
}

type wsdlAddress struct {
	XMLName  xml.Name
	Location string `xml:"location,attr"`
}

// endpoint is a resolved service port: where to post and which
// operations it offers.
type endpoint struct {
	Service    string
	Port       string
	Address    string
	Namespace  string
	Operations map[string]string // operation -> SOAPAction
}

type description struct {
	namespace string
	endpoints map[string]map[string]endpoint // service -> port -> endpoint
}

// parseWSDL decodes and resolves a WSDL 1.1 document. Every port must
// reference a known binding with a SOAP address; anything else is rejected.
func parseWSDL(body []byte) (*description, error) {
	var defs wsdlDefinitions
	if err := xml.Unmarshal(body, &defs); err != nil {
		return nil, errors.Wrap(err, "parse wsdl")
	}
	if defs.XMLName.Space != nsWSDL {
		return nil, errors.Errorf("parse wsdl: root element is {%s}%s, want wsdl:definitions",
			defs.XMLName.Space, defs.XMLName.Local)
	}
	if len(defs.Services) == 0 {
		return nil, errors.New("parse wsdl: no services defined")
	}

	portTypes := make(map[string]wsdlPortType, len(defs.PortTypes))
	for _, pt := range defs.PortTypes {
		portTypes[pt.Name] = pt
	}
	bindings := make(map[string]wsdlBinding, len(defs.Bindings))
	for _, b := range defs.Bindings {
		if _, ok := portTypes[localName(b.Type)]; !ok {
			return nil, errors.Errorf("parse wsdl: binding %q references unknown portType %q", b.Name, b.Type)
		}
		bindings[b.Name] = b
	}

	d := &description{namespace: defs.TargetNamespace, endpoints: map[string]map[string]endpoint{}}
	for _, svc := range defs.Services {
		ports := map[string]endpoint{}
		for _, p := range svc.Ports {
			b, ok := bindings[localName(p.Binding)]
			if !ok {
				return nil, errors.Errorf("parse wsdl: port %s.%s references unknown binding %q", svc.Name, p.Name, p.Binding)
			}
			addr := soapAddress(p.Addresses)
			if addr == "" {
				return nil, errors.Errorf("parse wsdl: port %s.%s has no soap address", svc.Name, p.Name)
			}
			ops := make(map[string]string, len(b.Operations))
			for _, op := range b.Operations {
				ops[op.Name] = soapAction(op.SOAPActions)
			}
			ports[p.Name] = endpoint{
				Service:    svc.Name,
				Port:       p.Name,
				Address:    addr,
				Namespace:  defs.TargetNamespace,
				Operations: ops,
			}
		}
		d.endpoints[svc.Name] = ports
	}
	return d, nil
}

// lookup resolves service and port names, listing what is available on a miss.
func (d *description) lookup(service, port string) (endpoint, error) {
	ports, ok := d.endpoints[service]
	if !ok {
		return endpoint{}, fmt.Errorf("unknown service %q, available: %s", service, strings.Join(d.serviceNames(), ", "))
	}
	ep, ok := ports[port]
	if !ok {
		names := make([]string, 0, len(ports))
		for n := range ports {
			names = append(names, n)
		}
		sort.Strings(names)
		return endpoint{}, fmt.Errorf("unknown port %q on service %q, available: %s", port, service, strings.Join(names, ", "))
	}
	return ep, nil
}

func (d *description) serviceNames() []string {
	names := make([]string, 0, len(d.endpoints))
	for n := range d.endpoints {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// soapAddress prefers the SOAP 1.1 address, which is what Call speaks.
func soapAddress(addrs []wsdlAddress) string {
	var soap12 string
	for _, a := range addrs {
		switch a.XMLName.Space {
		case nsSOAP11:
			return a.Location
		case nsSOAP12:
			soap12 = a.Location
		}
	}
	return soap12
}

func soapAction(actions []wsdlSOAPAction) string {
	for _, a := range actions {
		if a.XMLName.Space == nsSOAP11 || a.XMLName.Space == nsSOAP12 {
			return a.Action
		}
	}
	return ""
}

func localName(qname string) string {
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}
