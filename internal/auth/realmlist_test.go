package auth

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/hermesgo/internal/protocol/packet"
	"github.com/udisondev/hermesgo/internal/version"
)

func features(t *testing.T, b version.Build) version.Features {
	t.Helper()
	info, err := version.Lookup(b)
	require.NoError(t, err)
	return info.Features
}

func TestRealmList_RoundTrip(t *testing.T) {
	realms := []Realm{
		{ID: 0, Type: 1, Flags: RealmFlagNewPlayers, Name: "Alpha", Address: "127.0.0.1:8085", Population: 0.5, Characters: 2, Timezone: 1},
		{ID: 1, Type: 4, Locked: true, Flags: RealmFlagSpecifyBuild | RealmFlagFull, Name: "Beta", Address: "[::1]:8086",
			Population: 2, Timezone: 8, Major: 3, Minor: 3, Patch: 5, Build: version.V3_3_5a},
	}

	for _, build := range version.Supported() {
		t.Run(build.String(), func(t *testing.T) {
			f := features(t, build)
			want := realms
			if !f.RealmTypeLocked {
				want = []Realm{realms[0], realms[1]}
				want[1].Locked = false
			}

			got, err := ParseRealmList(EncodeRealmList(realms, f), f)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("realms mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRealmList_CountWidth(t *testing.T) {
	body := EncodeRealmList(nil, features(t, version.V1_12_1))
	// unk u32, count u8, footer u16
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0x02, 0x00}, body)

	body = EncodeRealmList(nil, features(t, version.V3_3_5a))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0x10, 0x00}, body)
}

func TestParseRealmList_Truncated(t *testing.T) {
	f := features(t, version.V2_4_3)
	body := EncodeRealmList([]Realm{{Name: "Gamma", Address: "host:1"}}, f)

	for _, n := range []int{0, 3, 6, 9, len(body) - 6} {
		_, err := ParseRealmList(body[:n], f)
		require.ErrorIs(t, err, packet.ErrShortPacket, "cut at %d", n)
	}
}

func TestRealm_HostPort(t *testing.T) {
	host, port, err := Realm{Address: "192.168.1.5:3724"}.HostPort()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.5", host)
	assert.Equal(t, uint16(3724), port)

	_, _, err = Realm{Address: "no-port"}.HostPort()
	require.Error(t, err)

	_, _, err = Realm{Address: "host:99999"}.HostPort()
	require.Error(t, err)
}
