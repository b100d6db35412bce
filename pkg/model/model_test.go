package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromIDNRigol(t *testing.T) {
	info, err := FromIDN("RIGOL TECHNOLOGIES,DP832,DP8A000001,00.01.16\n")
	require.NoError(t, err)
	assert.Equal(t, ManufacturerRigol, info.Manufacturer)
	assert.Equal(t, RigolDP800, info.RigolFamily)
	assert.Equal(t, "DP8A000001", info.Serial)
	assert.Equal(t, "00.01.16", info.Version)
}

func TestFromIDNSiglent(t *testing.T) {
	info, err := FromIDN("Siglent Technologies,SDS3000X HD,SDS0001,1.0.0")
	require.NoError(t, err)
	assert.Equal(t, ManufacturerSiglent, info.Manufacturer)
	assert.Equal(t, SiglentSDS3000X, info.SiglentFamily)
}

func TestFromIDNUnknownManufacturer(t *testing.T) {
	info, err := FromIDN("Acme Corp,Model X")
	require.NoError(t, err)
	assert.Equal(t, ManufacturerUnknown, info.Manufacturer)
}

func TestFromIDNLeCroyIsUnrecognized(t *testing.T) {
	info, err := FromIDN("LeCroy,WavePro7000")
	require.NoError(t, err)
	assert.Equal(t, ManufacturerUnknown, info.Manufacturer)
	assert.Equal(t, LecroyUnknown, info.LecroyFamily)
}

func TestFromIDNRejectsTooFewFields(t *testing.T) {
	_, err := FromIDN("OnlyOneField")
	assert.Error(t, err)
}

func TestFromIDNMinimalFields(t *testing.T) {
	info, err := FromIDN("Rigol,DS1202")
	require.NoError(t, err)
	assert.Equal(t, RigolDS1200, info.RigolFamily)
	assert.Equal(t, "", info.Serial)
	assert.Equal(t, "", info.Version)
}
