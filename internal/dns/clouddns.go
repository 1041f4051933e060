/*
MIT License

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

package dns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	clouddns "google.golang.org/api/dns/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Record types managed for preview environments.
const (
	TypeA   = "A"
	TypeTXT = "TXT"
)

// Record identifies one resource record set.
type Record struct {
	Type    string
	Name    string
	Project string
	Zone    string
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s (%s/%s)", r.Type, r.Name, r.Project, r.Zone)
}

// Deleter removes DNS records.
type Deleter interface {
	DeleteRecord(ctx context.Context, record Record) error
}

// CloudDNS deletes records through the Cloud DNS v1 API.
type CloudDNS struct {
	svc *clouddns.Service
}

// NewCloudDNS creates a Cloud DNS client. Without options it uses application default credentials.
func NewCloudDNS(ctx context.Context, opts ...option.ClientOption) (*CloudDNS, error) {
	svc, err := clouddns.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud DNS service: %w", err)
	}
	return &CloudDNS{svc: svc}, nil
}

// ClientOptions builds the options for a credentials file and an optional endpoint override.
func ClientOptions(credentialsFile, endpoint string) []option.ClientOption {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}

// DeleteRecord deletes the record set. A missing record is not an error.
func (c *CloudDNS) DeleteRecord(ctx context.Context, record Record) error {
	logger := log.FromContext(ctx).WithValues("type", record.Type, "record", record.Name, "zone", record.Zone)

	if record.Type == "" || record.Name == "" || record.Project == "" || record.Zone == "" {
		return fmt.Errorf("incomplete DNS record %s", record)
	}

	_, err := c.svc.ResourceRecordSets.Delete(record.Project, record.Zone, FQDN(record.Name), record.Type).
		Context(ctx).
		Do()
	if IsNotFound(err) {
		logger.V(1).Info("DNS record already absent")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete DNS record %s: %w", record, err)
	}

	logger.V(1).Info("Deleted DNS record")
	return nil
}

// FQDN returns name with the trailing dot Cloud DNS expects.
func FQDN(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

// IsNotFound reports whether err is a Cloud DNS 404.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
