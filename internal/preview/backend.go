/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package preview

import (
	"strings"

	"github.com/mikelane/previewgc/internal/dns"
)

// Namespace prefixes of the two backends.
const (
	CoreDevPrefix   = "staging-"
	HarvesterPrefix = "preview-"
)

// Backend describes one cluster backend.
type Backend struct {
	Name       string
	Prefix     string
	Domain     string
	DNSProject string
	DNSZone    string
	// ACMEChallenges adds the TXT records of DNS-01 challenges to the record set
	ACMEChallenges bool
}

// CoreDevBackend returns the core-dev backend for the given DNS location.
func CoreDevBackend(domain, project, zone string) Backend {
	return Backend{
		Name:           "coredev",
		Prefix:         CoreDevPrefix,
		Domain:         domain,
		DNSProject:     project,
		DNSZone:        zone,
		ACMEChallenges: true,
	}
}

// HarvesterBackend returns the Harvester backend for the given DNS location.
func HarvesterBackend(domain, project, zone string) Backend {
	return Backend{
		Name:       "harvester",
		Prefix:     HarvesterPrefix,
		Domain:     domain,
		DNSProject: project,
		DNSZone:    zone,
	}
}

// ExpectedNamespace returns the namespace an environment for branch would use.
func (b Backend) ExpectedNamespace(branch string) string {
	return b.Prefix + NameFromBranch(branch)
}

// Owns reports whether namespace carries the backend prefix.
func (b Backend) Owns(namespace string) bool {
	return strings.HasPrefix(namespace, b.Prefix)
}

// NameOf strips the backend prefix from namespace.
func (b Backend) NameOf(namespace string) string {
	return strings.TrimPrefix(namespace, b.Prefix)
}

// DNSRecords returns the records created for the environment called name.
func (b Backend) DNSRecords(name string) []dns.Record {
	d := name + "." + b.Domain

	record := func(typ, fqdn string) dns.Record {
		return dns.Record{Type: typ, Name: fqdn, Project: b.DNSProject, Zone: b.DNSZone}
	}

	records := []dns.Record{
		record(dns.TypeA, "*.ws-dev."+d),
		record(dns.TypeA, "*."+d),
		record(dns.TypeA, d),
		record(dns.TypeA, "prometheus-"+d),
		record(dns.TypeTXT, "prometheus-"+d),
		record(dns.TypeA, "grafana-"+d),
		record(dns.TypeTXT, "grafana-"+d),
	}
	if b.ACMEChallenges {
		records = append(records,
			record(dns.TypeTXT, "_acme-challenge."+d),
			record(dns.TypeTXT, "_acme-challenge.ws-dev."+d),
		)
	}

	return records
}
