package registry

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const testNamespace = "urn:test:anlage"

func sampleWSDL(address string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<wsdl:definitions xmlns:wsdl="http://schemas.xmlsoap.org/wsdl/"
    xmlns:soap="http://schemas.xmlsoap.org/wsdl/soap/"
    xmlns:tns="urn:test:anlage" targetNamespace="urn:test:anlage">
  <wsdl:types/>
  <wsdl:portType name="AnlagePortType">
    <wsdl:operation name="GetEinheitWind"/>
    <wsdl:operation name="GetLokaleUhrzeit"/>
  </wsdl:portType>
  <wsdl:binding name="AnlageBinding" type="tns:AnlagePortType">
    <soap:binding transport="http://schemas.xmlsoap.org/soap/http"/>
    <wsdl:operation name="GetEinheitWind"><soap:operation soapAction="urn:GetEinheitWind"/></wsdl:operation>
    <wsdl:operation name="GetLokaleUhrzeit"><soap:operation soapAction="urn:GetLokaleUhrzeit"/></wsdl:operation>
  </wsdl:binding>
  <wsdl:service name="Marktstammdatenregister">
    <wsdl:port name="Anlage" binding="tns:AnlageBinding"><soap:address location="%s"/></wsdl:port>
  </wsdl:service>
</wsdl:definitions>`, address)
}

// registryServer serves the sample WSDL at /wsdl and delegates /soap to soap.
type registryServer struct {
	*httptest.Server
	wsdlHits atomic.Int32
	soapHits atomic.Int32
}

func newRegistryServer(t *testing.T, soap http.HandlerFunc) *registryServer {
	t.Helper()
	rs := &registryServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/wsdl", func(w http.ResponseWriter, _ *http.Request) {
		rs.wsdlHits.Add(1)
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		_, _ = w.Write([]byte(sampleWSDL(rs.URL + "/soap")))
	})
	mux.HandleFunc("/soap", func(w http.ResponseWriter, r *http.Request) {
		rs.soapHits.Add(1)
		if soap == nil {
			http.NotFound(w, r)
			return
		}
		soap(w, r)
	})
	rs.Server = httptest.NewUnstartedServer(mux)
	rs.Start()
	t.Cleanup(rs.Close)
	return rs
}
