package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	apperrors "github.com/bootstack/bootstack/internal/errors"
)

// EC2Client defines the EC2 operations used by network discovery.
// This interface enables mocking for unit tests.
type EC2Client interface {
	DescribeVpcs(
		ctx context.Context,
		params *ec2.DescribeVpcsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeVpcsOutput, error)
	DescribeSubnets(
		ctx context.Context,
		params *ec2.DescribeSubnetsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeSubnetsOutput, error)
}

// NetworkDiscovery resolves a usable VPC and subnet set for resource
// placement. Selection prefers the account's default VPC and publicly
// routable subnets, falling back in both cases rather than failing;
// only an insufficient subnet count is a hard error.
type NetworkDiscovery struct {
	client EC2Client
	logger *slog.Logger
}

// NewNetworkDiscovery creates a discovery backed by the real EC2 client.
func NewNetworkDiscovery(cfg aws.Config, log *slog.Logger) *NetworkDiscovery {
	return &NetworkDiscovery{
		client: ec2.NewFromConfig(cfg),
		logger: log,
	}
}

// NewNetworkDiscoveryWithClient creates a discovery with a custom client (for testing).
func NewNetworkDiscoveryWithClient(client EC2Client, log *slog.Logger) *NetworkDiscovery {
	return &NetworkDiscovery{client: client, logger: log}
}

// Resolve picks a VPC and at least minSubnets subnets inside it.
// Subnet IDs keep the order the provider returned them in and are
// deduplicated by identifier.
func (d *NetworkDiscovery) Resolve(ctx context.Context, minSubnets int) (*Network, error) {
	network, err := d.resolveVPC(ctx)
	if err != nil {
		return nil, err
	}

	subnetIDs, usedAll, err := d.resolveSubnets(ctx, network.VpcID)
	if err != nil {
		return nil, err
	}
	network.SubnetIDs = subnetIDs
	network.UsedAllSubnets = usedAll

	if len(subnetIDs) < minSubnets {
		return nil, apperrors.ErrInsufficientTopology(
			fmt.Sprintf("VPC %s has %d usable subnets, need at least %d",
				network.VpcID, len(subnetIDs), minSubnets), nil)
	}

	return network, nil
}

// resolveVPC returns the default VPC, or the first VPC of an
// unfiltered listing when the account has no default. Not every
// account retains a default VPC.
func (d *NetworkDiscovery) resolveVPC(ctx context.Context) (*Network, error) {
	d.logger.Debug("calling external service", "operation", "EC2.DescribeVpcs", "filter", "isDefault")

	out, err := d.client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("isDefault"), Values: []string{"true"}},
		},
	})
	if err != nil {
		return nil, apperrors.ErrInsufficientTopology("failed to list VPCs", err)
	}

	if len(out.Vpcs) > 0 && out.Vpcs[0].VpcId != nil {
		return &Network{VpcID: *out.Vpcs[0].VpcId, IsDefaultVPC: true}, nil
	}

	d.logger.Warn("no default VPC in account, falling back to first available")

	out, err = d.client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{})
	if err != nil {
		return nil, apperrors.ErrInsufficientTopology("failed to list VPCs", err)
	}
	if len(out.Vpcs) == 0 || out.Vpcs[0].VpcId == nil {
		return nil, apperrors.ErrInsufficientTopology("account has no VPCs", nil)
	}

	return &Network{VpcID: *out.Vpcs[0].VpcId, UsedFallbackVPC: true}, nil
}

// resolveSubnets returns the publicly routable subnets of the VPC, or
// every subnet in the VPC when the public filter matches nothing.
// The relaxation is deliberate fallback policy, not an error.
func (d *NetworkDiscovery) resolveSubnets(ctx context.Context, vpcID string) (ids []string, usedAll bool, err error) {
	public, err := d.listSubnets(ctx, vpcID, true)
	if err != nil {
		return nil, false, err
	}
	if len(public) > 0 {
		return public, false, nil
	}

	d.logger.Warn("no public subnets in VPC, falling back to all subnets", "vpc", vpcID)

	all, err := d.listSubnets(ctx, vpcID, false)
	if err != nil {
		return nil, false, err
	}
	return all, true, nil
}

func (d *NetworkDiscovery) listSubnets(ctx context.Context, vpcID string, publicOnly bool) ([]string, error) {
	filters := []ec2types.Filter{
		{Name: aws.String("vpc-id"), Values: []string{vpcID}},
	}
	if publicOnly {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("map-public-ip-on-launch"),
			Values: []string{"true"},
		})
	}

	d.logger.Debug("calling external service", "operation", "EC2.DescribeSubnets",
		"vpc", vpcID, "publicOnly", publicOnly)

	out, err := d.client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{Filters: filters})
	if err != nil {
		return nil, apperrors.ErrInsufficientTopology(
			fmt.Sprintf("failed to list subnets in VPC %s", vpcID), err)
	}

	// Provider order is preserved; duplicates are dropped by identifier.
	seen := make(map[string]struct{}, len(out.Subnets))
	ids := make([]string, 0, len(out.Subnets))
	for _, subnet := range out.Subnets {
		if subnet.SubnetId == nil {
			continue
		}
		if _, dup := seen[*subnet.SubnetId]; dup {
			continue
		}
		seen[*subnet.SubnetId] = struct{}{}
		ids = append(ids, *subnet.SubnetId)
	}

	return ids, nil
}
