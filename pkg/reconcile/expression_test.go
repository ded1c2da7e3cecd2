package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseItemRefs(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []ItemRef
	}{
		{
			name: "simple",
			expr: "avg(/webserver1/system.cpu.util,1m)>50",
			want: []ItemRef{{Host: "webserver1", Key: "system.cpu.util"}},
		},
		{
			name: "bracketed key with comma",
			expr: "min(/webserver1/vfs.fs.size[/,pfree],1m)<40",
			want: []ItemRef{{Host: "webserver1", Key: "vfs.fs.size[/,pfree]"}},
		},
		{
			name: "quoted parameters",
			expr: `count(/log-srv/logrt["/var/log/remote/webserver1/syslog.log","LAB-TEST|ERROR|CRITICAL",,,skip],1m)>0`,
			want: []ItemRef{{
				Host: "log-srv",
				Key:  `logrt["/var/log/remote/webserver1/syslog.log","LAB-TEST|ERROR|CRITICAL",,,skip]`,
			}},
		},
		{
			name: "escaped quote and closing bracket inside quotes",
			expr: `last(/h/k["a\"],b"])=1`,
			want: []ItemRef{{Host: "h", Key: `k["a\"],b"]`}},
		},
		{
			name: "several references",
			expr: "last(/New SNMP/net.if.status[{$IFINDEX_ETH1}])=2 and {$FORCE_ETH1_PROBLEM}=0 or last(/other/x)=1",
			want: []ItemRef{{Host: "New SNMP", Key: "net.if.status[{$IFINDEX_ETH1}]"}, {Host: "other", Key: "x"}},
		},
		{
			name: "no reference",
			expr: "1=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseItemRefs(tt.expr))
		})
	}
}

func TestHosts(t *testing.T) {
	expr := "last(/a/x)=1 and last(/b/y)=1 and last(/a/z)=1"
	assert.Equal(t, []string{"a", "b"}, Hosts(expr))
	assert.Empty(t, Hosts(""))
}
