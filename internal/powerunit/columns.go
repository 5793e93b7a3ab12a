package powerunit

import "mastr/internal/storage"

// Columns is the flattened power-unit layout shared by every category
// table. It joins the unit master data (no suffix) with the wind/technology
// block (_w), the EEG block (_e), the permit block (_p) and the metadata
// block (_m). Order is the column order of the created table.
var Columns = []storage.ColumnSpec{
	floatCol("w-id"),
	floatCol("pu-id"),
	floatCol("lid"),
	stringCol("EinheitMastrNummer", 20),
	stringCol("Name", 100),
	stringCol("Einheitart", 25),
	stringCol("Einheittyp", 15),
	stringCol("Standort", 150),
	floatCol("Bruttoleistung"),
	floatCol("Erzeugungsleistung"),
	stringCol("EinheitBetriebsstatus", 25),
	stringCol("Anlagenbetreiber", 20),
	stringCol("EegMastrNummer", 20),
	floatCol("KwkMastrNummer"),
	floatCol("SpeMastrNummer"),
	stringCol("GenMastrNummer", 20),
	floatCol("BestandsanlageMastrNummer"),
	floatCol("NichtVorhandenInMigriertenEinheiten"),
	floatCol("StatistikFlag"),
	stringCol("version", 10),
	stringCol("timestamp", 30),
	floatCol("lid_w"),
	stringCol("Ergebniscode", 5),
	stringCol("AufrufVeraltet", 5),
	floatCol("AufrufLebenszeitEnde"),
	floatCol("AufrufVersion"),
	stringCol("DatumLetzteAktualisierung", 30),
	stringCol("LokationMastrNummer", 20),
	stringCol("NetzbetreiberpruefungStatus", 15),
	stringCol("NetzbetreiberpruefungDatum", 15),
	stringCol("NetzbetreiberMastrNummer", 20),
	stringCol("Land", 15),
	stringCol("Bundesland", 35),
	stringCol("Landkreis", 35),
	stringCol("Gemeinde", 35),
	floatCol("Gemeindeschluessel"),
	stringCol("Postleitzahl", 5),
	stringCol("Gemarkung", 70),
	stringCol("FlurFlurstuecknummern", 260),
	stringCol("Strasse", 100),
	stringCol("StrasseNichtGefunden", 10),
	stringCol("Hausnummer", 65),
	stringCol("HausnummerNichtGefunden", 5),
	stringCol("Adresszusatz", 50),
	stringCol("Ort", 55),
	floatCol("Laengengrad"),
	floatCol("Breitengrad"),
	floatCol("UtmZonenwert"),
	floatCol("UtmEast"),
	floatCol("UtmNorth"),
	floatCol("GaussKruegerHoch"),
	floatCol("GaussKruegerRechts"),
	stringCol("Meldedatum", 10),
	floatCol("GeplantesInbetriebnahmedatum"),
	stringCol("Inbetriebnahmedatum", 10),
	stringCol("DatumEndgueltigeStilllegung", 10),
	stringCol("DatumBeginnVoruebergehendeStilllegung", 10),
	stringCol("DatumWiederaufnahmeBetrieb", 10),
	stringCol("EinheitBetriebsstatus_w", 25),
	floatCol("BestandsanlageMastrNummer_w"),
	floatCol("NichtVorhandenInMigriertenEinheiten_w"),
	stringCol("AltAnlagenbetreiberMastrNummer", 15),
	stringCol("DatumDesBetreiberwechsels", 10),
	stringCol("DatumRegistrierungDesBetreiberwechsels", 10),
	stringCol("StatisikFlag_w", 5),
	stringCol("NameStromerzeugungseinheit", 90),
	stringCol("Weic", 75),
	stringCol("WeicDisplayName", 40),
	stringCol("Kraftwerksnummer", 60),
	stringCol("Energietraeger", 5),
	floatCol("Bruttoleistung_w"),
	floatCol("Nettonennleistung"),
	stringCol("AnschlussAnHoechstOderHochSpannung", 10),
	floatCol("Schwarzstartfaehigkeit"),
	floatCol("Inselbetriebsfaehigkeit"),
	floatCol("Einsatzverantwortlicher"),
	stringCol("FernsteuerbarkeitNb", 5),
	stringCol("FernsteuerbarkeitDv", 5),
	stringCol("FernsteuerbarkeitDr", 5),
	stringCol("Einspeisungsart", 15),
	floatCol("PraequalifiziertFuerRegelenergie"),
	stringCol("GenMastrNummer_w", 15),
	stringCol("NameWindpark", 95),
	stringCol("Lage", 15),
	stringCol("Seelage", 10),
	stringCol("ClusterOstsee", 5),
	stringCol("ClusterNordsee", 5),
	stringCol("Technologie", 20),
	stringCol("Typenbezeichnung", 60),
	floatCol("Nabenhoehe"),
	floatCol("Rotordurchmesser"),
	floatCol("Rotorblattenteisungssystem"),
	stringCol("AuflageAbschaltungLeistungsbegrenzung", 5),
	floatCol("AuflagenAbschaltungSchallimmissionsschutzNachts"),
	floatCol("AuflagenAbschaltungSchallimmissionsschutzTagsueber"),
	floatCol("AuflagenAbschaltungSchattenwurf"),
	floatCol("AuflagenAbschaltungTierschutz"),
	floatCol("AuflagenAbschaltungEiswurf"),
	floatCol("AuflagenAbschaltungSonstige"),
	floatCol("Wassertiefe"),
	floatCol("Kuestenentfernung"),
	stringCol("EegMastrNummer_w", 15),
	floatCol("HerstellerID"),
	stringCol("HerstellerName", 80),
	stringCol("version_w", 10),
	stringCol("timestamp_w", 30),
	floatCol("lid_e"),
	stringCol("Ergebniscode_e", 5),
	stringCol("AufrufVeraltet_e", 5),
	floatCol("AufrufLebenszeitEnde_e"),
	floatCol("AufrufVersion_e"),
	stringCol("Meldedatum_e", 10),
	stringCol("DatumLetzteAktualisierung_e", 30),
	stringCol("EegInbetriebnahmedatum", 10),
	stringCol("AnlagenkennzifferAnlagenregister", 75),
	stringCol("AnlagenschluesselEeg", 35),
	stringCol("PrototypAnlage", 5),
	stringCol("PilotAnlage", 5),
	floatCol("InstallierteLeistung"),
	stringCol("VerhaeltnisErtragsschaetzungReferenzertrag", 80),
	stringCol("VerhaeltnisReferenzertragErtrag5Jahre", 80),
	stringCol("VerhaeltnisReferenzertragErtrag10Jahre", 80),
	stringCol("VerhaeltnisReferenzertragErtrag15Jahre", 80),
	stringCol("AusschreibungZuschlag", 5),
	stringCol("Zuschlagsnummer", 15),
	stringCol("AnlageBetriebsstatus", 25),
	stringCol("VerknuepfteEinheit", 130),
	stringCol("version_e", 10),
	stringCol("timestamp_e", 30),
	stringCol("MaStRNummer", 20),
	stringCol("Einheittyp_p", 15),
	stringCol("Einheitart_p", 30),
	stringCol("Datum", 10),
	stringCol("Art", 30),
	stringCol("Behoerde", 180),
	stringCol("Aktenzeichen", 100),
	stringCol("Frist", 15),
	floatCol("WasserrechtsNummer"),
	floatCol("WasserrechtAblaufdatum"),
	stringCol("Meldedatum_p", 10),
	stringCol("version_m", 10),
	stringCol("timestamp_m", 30),
}

func floatCol(name string) storage.ColumnSpec {
	return storage.ColumnSpec{Name: name, Type: storage.TypeFloat}
}

func stringCol(name string, length int) storage.ColumnSpec {
	return storage.ColumnSpec{Name: name, Type: storage.TypeString, Length: length}
}
