package types

import "testing"

func TestConfigAddressWordRoundTrip(t *testing.T) {
	in := ConfigAddress{Address: Address{Bus: 1, Device: 2, Function: 3}, Register: 0x10}
	w := in.Word()
	if w != 0x80011310 {
		t.Errorf("Word() = %#x, want 0x80011310", w)
	}

	out, enabled := ParseWord(w)
	if !enabled {
		t.Error("enable bit not set")
	}
	if out != in {
		t.Errorf("ParseWord(%#x) = %+v, want %+v", w, out, in)
	}
}

func TestConfigAddressWordFields(t *testing.T) {
	tests := []struct {
		name string
		addr ConfigAddress
		want uint32
	}{
		{"zero", ConfigAddress{}, 0x80000000},
		{"max bus", ConfigAddress{Address: Address{Bus: 0xff}}, 0x80ff0000},
		{"max device", ConfigAddress{Address: Address{Device: 31}}, 0x8000f800},
		{"max function", ConfigAddress{Address: Address{Function: 7}}, 0x80000700},
		{"last register", ConfigAddress{Register: 0xfc}, 0x800000fc},
		{"unaligned register drops low bits", ConfigAddress{Register: 0x3e}, 0x8000003c},
		{"device does not spill into bus", ConfigAddress{Address: Address{Device: 0x3f}}, 0x8000f800},
		{"function does not spill into device", ConfigAddress{Address: Address{Function: 0x0f}}, 0x80000700},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.addr.Word(); got != tt.want {
				t.Errorf("Word() = %#08x, want %#08x", got, tt.want)
			}
		})
	}
}

func TestParseWordDisabled(t *testing.T) {
	c, enabled := ParseWord(0x00011310)
	if enabled {
		t.Error("enable bit reported on a disabled word")
	}
	if c.Bus != 1 || c.Device != 2 || c.Function != 3 || c.Register != 0x10 {
		t.Errorf("fields not decoded: %+v", c)
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    Address
		wantErr bool
	}{
		{in: "0000:01:00.0", want: Address{Bus: 1}},
		{in: "0000:0a:1f.7", want: Address{Bus: 0x0a, Device: 0x1f, Function: 7}},
		{in: "0001:80:02.1", want: Address{Domain: 1, Bus: 0x80, Device: 2, Function: 1}},
		{in: "00:1F.3", want: Address{Device: 0x1f, Function: 3}},
		{in: "0000:01:00", wantErr: true},
		{in: "0000:01:00.0.1", wantErr: true},
		{in: "invalid", wantErr: true},
		{in: "0000:01:00.g", wantErr: true},
		{in: "0000:01:20.0", wantErr: true},
		{in: "0000:01:00.8", wantErr: true},
		{in: "0000:100:00.0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseAddress(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAddressString(t *testing.T) {
	a := Address{Domain: 0, Bus: 0x3b, Device: 0x1c, Function: 4}
	if got := a.String(); got != "0000:3b:1c.4" {
		t.Errorf("String() = %q", got)
	}
	back, err := ParseAddress(a.String())
	if err != nil || back != a {
		t.Errorf("ParseAddress(String()) = %+v, %v", back, err)
	}
	if got := a.Register(0x3c).String(); got != "0000:3b:1c.4@0x3c" {
		t.Errorf("ConfigAddress.String() = %q", got)
	}
}
