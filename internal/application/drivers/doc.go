// Package drivers holds the node driver registry and the catalog that
// populates it at startup.
//
// The registry maps a (service type, vendor) capability to the ordered list
// of drivers that handle it. Scheduling for a node looks up the node
// profile's exact capability first, then the service type with any vendor,
// then the "*" wildcard, and returns the first driver whose optional
// ports.ActionValidator accepts the action.
//
// Example catalog:
//
//	plumber: noop
//	drivers:
//	  - name: firewall
//	    type: noop
//	    capabilities:
//	      - service_type: FIREWALL
//	        vendor: acme
//	    plumbing:
//	      provider:
//	        - name: provider-port
//	  - name: fallback
//	    type: noop
//	    capabilities:
//	      - service_type: "*"
package drivers
