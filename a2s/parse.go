package a2s

import (
	"fmt"
	"strconv"
)

const shipAppID = 2400

// legacyNoPacketSizeAppIDs lists the app ids of old titles whose
// multi-packet Source-path fragment header omits the int16 packet-size
// field when the server reports protocol version 7 (the protocol check is
// made in ingestFragment); see spec.md §4.3.
var legacyNoPacketSizeAppIDs = map[uint16]bool{
	215:   true,
	17550: true,
	17700: true,
	240:   true,
}

// parseSourceInfo parses a 0x49 A2S_INFO response body per spec.md §4.4.
func parseSourceInfo(r *reader) (*SourceInfo, error) {
	info := &SourceInfo{}

	var err error
	if info.Protocol, err = r.readU8(); err != nil {
		return nil, r.wrapf("protocol", err)
	}
	if info.Name, err = r.readString(); err != nil {
		return nil, r.wrapf("name", err)
	}
	if info.Map, err = r.readString(); err != nil {
		return nil, r.wrapf("map", err)
	}
	if info.Folder, err = r.readString(); err != nil {
		return nil, r.wrapf("folder", err)
	}
	if info.Game, err = r.readString(); err != nil {
		return nil, r.wrapf("game", err)
	}
	appID, err := r.readI16()
	if err != nil {
		return nil, r.wrapf("appid", err)
	}
	info.AppID = uint16(appID)
	if info.Players, err = r.readU8(); err != nil {
		return nil, r.wrapf("players", err)
	}
	if info.MaxPlayers, err = r.readU8(); err != nil {
		return nil, r.wrapf("maxplayers", err)
	}
	if info.Bots, err = r.readU8(); err != nil {
		return nil, r.wrapf("bots", err)
	}
	if info.ServerType, err = r.readChar(); err != nil {
		return nil, r.wrapf("servertype", err)
	}
	if info.Environment, err = r.readChar(); err != nil {
		return nil, r.wrapf("environment", err)
	}
	if info.Visibility, err = r.readU8(); err != nil {
		return nil, r.wrapf("visibility", err)
	}
	if info.VAC, err = r.readU8(); err != nil {
		return nil, r.wrapf("vac", err)
	}

	if info.AppID == shipAppID {
		ship := &ShipInfo{}
		if ship.Mode, err = r.readU8(); err != nil {
			return nil, r.wrapf("ship.mode", err)
		}
		if ship.Witnesses, err = r.readU8(); err != nil {
			return nil, r.wrapf("ship.witnesses", err)
		}
		if ship.Duration, err = r.readU8(); err != nil {
			return nil, r.wrapf("ship.duration", err)
		}
		info.Ship = ship
	}

	if info.Version, err = r.readString(); err != nil {
		return nil, r.wrapf("version", err)
	}

	if r.remaining() == 0 {
		return info, nil
	}
	if info.EDF, err = r.readU8(); err != nil {
		return nil, r.wrapf("edf", err)
	}

	if info.EDF&0x80 != 0 {
		port, err := r.readU16()
		if err != nil {
			return nil, r.wrapf("edf.port", err)
		}
		info.Port = &port
	}
	if info.EDF&0x10 != 0 {
		steamID, err := r.readU64()
		if err != nil {
			return nil, r.wrapf("edf.steamid", err)
		}
		info.SteamID = strconv.FormatUint(steamID, 10)
	}
	if info.EDF&0x40 != 0 {
		spec := &SpectatorInfo{}
		if spec.Port, err = r.readU16(); err != nil {
			return nil, r.wrapf("edf.spectator.port", err)
		}
		if spec.Name, err = r.readString(); err != nil {
			return nil, r.wrapf("edf.spectator.name", err)
		}
		info.Spectator = spec
	}
	if info.EDF&0x20 != 0 {
		if info.Keywords, err = r.readString(); err != nil {
			return nil, r.wrapf("edf.keywords", err)
		}
	}
	if info.EDF&0x01 != 0 {
		gameID, err := r.readU64()
		if err != nil {
			return nil, r.wrapf("edf.gameid", err)
		}
		info.GameID = strconv.FormatUint(gameID, 10)
	}

	return info, nil
}

// parseGoldSourceInfo parses a 0x6D obsolete A2S_INFO response body per
// spec.md §4.4.
func parseGoldSourceInfo(r *reader) (*GoldSourceInfo, error) {
	info := &GoldSourceInfo{}
	var err error

	if info.Address, err = r.readString(); err != nil {
		return nil, r.wrapf("address", err)
	}
	if info.Name, err = r.readString(); err != nil {
		return nil, r.wrapf("name", err)
	}
	if info.Map, err = r.readString(); err != nil {
		return nil, r.wrapf("map", err)
	}
	if info.Folder, err = r.readString(); err != nil {
		return nil, r.wrapf("folder", err)
	}
	if info.Game, err = r.readString(); err != nil {
		return nil, r.wrapf("game", err)
	}
	if info.Players, err = r.readU8(); err != nil {
		return nil, r.wrapf("players", err)
	}
	if info.MaxPlayers, err = r.readU8(); err != nil {
		return nil, r.wrapf("maxplayers", err)
	}
	if info.Protocol, err = r.readU8(); err != nil {
		return nil, r.wrapf("protocol", err)
	}
	if info.ServerType, err = r.readChar(); err != nil {
		return nil, r.wrapf("servertype", err)
	}
	if info.Environment, err = r.readChar(); err != nil {
		return nil, r.wrapf("environment", err)
	}
	if info.Visibility, err = r.readU8(); err != nil {
		return nil, r.wrapf("visibility", err)
	}
	if info.ModFlag, err = r.readU8(); err != nil {
		return nil, r.wrapf("mod", err)
	}

	if info.ModFlag == 1 {
		mod := &GoldSourceModInfo{}
		if mod.Link, err = r.readString(); err != nil {
			return nil, r.wrapf("mod.link", err)
		}
		if mod.DownloadLink, err = r.readString(); err != nil {
			return nil, r.wrapf("mod.downloadlink", err)
		}
		if err = r.skip(1); err != nil {
			return nil, r.wrapf("mod.padding", err)
		}
		if mod.Version, err = r.readI32(); err != nil {
			return nil, r.wrapf("mod.version", err)
		}
		if mod.Size, err = r.readI32(); err != nil {
			return nil, r.wrapf("mod.size", err)
		}
		if mod.Type, err = r.readU8(); err != nil {
			return nil, r.wrapf("mod.type", err)
		}
		if mod.DLL, err = r.readU8(); err != nil {
			return nil, r.wrapf("mod.dll", err)
		}
		info.Mod = mod
	}

	if info.VAC, err = r.readU8(); err != nil {
		return nil, r.wrapf("vac", err)
	}
	// Bots trails and is tolerated missing in the wild.
	if bots, err := r.readU8(); err == nil {
		info.Bots = bots
	}

	return info, nil
}

// parsePlayers parses a 0x44 A2S_PLAYER response body per spec.md §4.4.
// Buffer underrun mid-list is tolerated: the parser returns what it has.
func parsePlayers(r *reader, appID uint16) ([]Player, error) {
	count, err := r.readU8()
	if err != nil {
		return nil, r.wrapf("player count", err)
	}

	players := make([]Player, 0, count)
	for i := 0; i < int(count) && r.remaining() > 0; i++ {
		var p Player
		if p.Index, err = r.readU8(); err != nil {
			break
		}
		if p.Name, err = r.readString(); err != nil {
			break
		}
		if p.Score, err = r.readI32(); err != nil {
			break
		}
		if p.Duration, err = r.readF32(); err != nil {
			break
		}
		if appID == shipAppID {
			deaths, derr := r.readI32()
			if derr != nil {
				break
			}
			money, merr := r.readI32()
			if merr != nil {
				break
			}
			p.Deaths = &deaths
			p.Money = &money
		}
		players = append(players, p)
	}
	return players, nil
}

// parseRules parses a 0x45 A2S_RULES response body per spec.md §4.4.
// Buffer underrun mid-list is tolerated: the parser returns what it has.
func parseRules(r *reader) ([]Rule, error) {
	count, err := r.readI16()
	if err != nil {
		return nil, r.wrapf("rule count", err)
	}
	if count < 0 {
		return nil, r.wrapf("rule count", fmt.Errorf("negative count %d", count))
	}

	rules := make([]Rule, 0, count)
	for i := 0; i < int(count) && r.remaining() > 0; i++ {
		var rule Rule
		if rule.Name, err = r.readString(); err != nil {
			break
		}
		if rule.Value, err = r.readString(); err != nil {
			break
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
